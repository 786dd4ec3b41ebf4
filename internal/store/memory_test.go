package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analisis-mcp/internal/analysis"
	"analisis-mcp/internal/cases"
	"analisis-mcp/internal/progress"
)

func fixture() Fixture {
	parent := int64(1)
	return Fixture{
		Proyectos: []analysis.Project{
			{ID: 42, Nombre: "Cobranza Bogotá", Activo: true},
			{ID: 43, Nombre: "Archivo Cali", Activo: false},
		},
		Tareas: []analysis.Task{
			{ID: 1, ProyectoID: 42, Nombre: "Fase 1"},
			{ID: 2, ProyectoID: 42, PadreID: &parent, Nombre: "Llamadas", Porcentaje: 40, DiasAtraso: 2, ResponsableID: 5, ResponsableNombre: "Ana"},
			{ID: 3, ProyectoID: 42, PadreID: &parent, Nombre: "Cartas", Porcentaje: 100, Estado: "Completada"},
			{ID: 10, ProyectoID: 43, Nombre: "Digitalizar", Porcentaje: 10},
		},
		Asignaciones: []analysis.Assignment{
			{TareaID: 3, UsuarioID: 6, UsuarioNombre: "Luis"},
			{TareaID: 10, UsuarioID: 7, UsuarioNombre: "Eva"},
			{TareaID: 99, UsuarioID: 8},
		},
	}
}

func TestLoadFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fx.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"proyectos":[{"id":1,"nombre":"P","activo":true}],"tareas":[{"id":5,"proyecto_id":1,"padre_id":null,"nombre":"T"}]}`), 0o644))

	fx, err := LoadFixture(path)
	require.NoError(t, err)
	assert.Len(t, fx.Proyectos, 1)
	require.Len(t, fx.Tareas, 1)
	assert.Nil(t, fx.Tareas[0].PadreID)

	_, err = LoadFixture(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestMemory_DataSource(t *testing.T) {
	m := NewMemory("")
	m.AddFixture(fixture())
	ctx := context.Background()

	p, err := m.GetProject(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Cobranza Bogotá", p.Nombre)

	_, err = m.GetProject(ctx, 1)
	assert.ErrorIs(t, err, analysis.ErrProjectNotFound)

	tasks, err := m.ListTasks(ctx, 42)
	require.NoError(t, err)
	assert.Len(t, tasks, 3)

	as, err := m.ListAssignments(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, []analysis.Assignment{{TareaID: 3, UsuarioID: 6, UsuarioNombre: "Luis"}}, as)
}

func TestMemory_PipelineRoundTrip(t *testing.T) {
	history := filepath.Join(t.TempDir(), "runs.jsonl")
	m := NewMemory(history)
	m.AddFixture(fixture())
	cat, err := cases.LoadCatalog("")
	require.NoError(t, err)

	p := analysis.NewPipeline(m, m, cat, progress.NewMemoryStore(), analysis.Options{})
	run, err := p.AnalyzeProject(context.Background(), 42, "completo")
	require.NoError(t, err)

	got, err := m.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, analysis.RunCompleted, got.Estado)
	assert.Equal(t, run.Score, got.Score)

	metrics, err := m.ListMetrics(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, metrics, 3)
	assert.Equal(t, "cronograma", metrics[0].Dominio)

	casos, err := m.ListCases(context.Background(), run.ID)
	require.NoError(t, err)
	require.NotEmpty(t, casos)
	for i, c := range casos {
		assert.Equal(t, i+1, c.OrdenNarrativo)
	}

	secs, err := m.ListSections(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Len(t, secs, 3)

	// A fresh store sees the run through the history file.
	reloaded := NewMemory("")
	require.NoError(t, reloaded.LoadHistory(history))
	again, err := reloaded.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Semaforo, again.Semaforo)
	assert.True(t, got.Inicio.Equal(again.Inicio))

	reCasos, err := reloaded.ListCases(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, casos, reCasos)
}

func TestMemory_LoadHistory(t *testing.T) {
	m := NewMemory("")
	require.NoError(t, m.LoadHistory(filepath.Join(t.TempDir(), "none.jsonl")), "missing history is not an error")

	path := filepath.Join(t.TempDir(), "runs.jsonl")
	content := `{"run":{"run_id":"a","proyecto_id":1,"estado":"completed","inicio":"2026-01-01T00:00:00Z"}}
not json
{"run":{"run_id":"b","proyecto_id":1,"estado":"failed","inicio":"2026-01-02T00:00:00Z"}}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, m.LoadHistory(path))

	runs, err := m.ListRuns(context.Background(), analysis.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].ID)
}

func TestMemory_ListRuns(t *testing.T) {
	m := NewMemory("")
	m.AddFixture(fixture())
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	seed := []analysis.Run{
		{ID: "r1", ProyectoID: 42, ProyectoNombre: "Cobranza Bogotá", Estado: analysis.RunCompleted, Semaforo: "verde", Resumen: "estado verde", Inicio: base},
		{ID: "r2", ProyectoID: 42, ProyectoNombre: "Cobranza Bogotá", Estado: analysis.RunFailed, Inicio: base.Add(24 * time.Hour)},
		{ID: "r3", ProyectoID: 43, ProyectoNombre: "Archivo Cali", Estado: analysis.RunCompleted, Semaforo: "rojo", Resumen: "estado rojo", Inicio: base.Add(48 * time.Hour)},
		{ID: "r4", ProyectoID: 42, ProyectoNombre: "Cobranza Bogotá", Estado: analysis.RunCompleted, Semaforo: "amarillo", Resumen: "estado amarillo", Inicio: base.Add(72 * time.Hour)},
	}
	for i := range seed {
		require.NoError(t, m.CreateRun(ctx, &seed[i]))
	}

	tests := []struct {
		name   string
		filter analysis.RunFilter
		want   []string
	}{
		{"All", analysis.RunFilter{}, []string{"r4", "r3", "r2", "r1"}},
		{"Project", analysis.RunFilter{ProyectoID: 43}, []string{"r3"}},
		{"ActiveOnly", analysis.RunFilter{SoloActivos: true}, []string{"r4", "r2", "r1"}},
		{"State", analysis.RunFilter{Estado: analysis.RunFailed}, []string{"r2"}},
		{"Semaforo", analysis.RunFilter{Semaforo: "verde"}, []string{"r1"}},
		{"DateRange", analysis.RunFilter{Desde: base.Add(24 * time.Hour), Hasta: base.Add(72 * time.Hour)}, []string{"r3", "r2"}},
		{"SearchName", analysis.RunFilter{Texto: "cali"}, []string{"r3"}},
		{"SearchSummary", analysis.RunFilter{Texto: "AMARILLO"}, []string{"r4"}},
		{"Limit", analysis.RunFilter{Limite: 2}, []string{"r4", "r3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := m.ListRuns(ctx, tt.filter)
			require.NoError(t, err)
			var ids []string
			for _, r := range runs {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestMemory_MetricsWrittenOnce(t *testing.T) {
	m := NewMemory("")
	ctx := context.Background()
	require.NoError(t, m.CreateRun(ctx, &analysis.Run{ID: "r1"}))

	dm := analysis.DomainMetrics{RunID: "r1", Dominio: "finanzas", Score: 75}
	require.NoError(t, m.SaveDomainMetrics(ctx, dm))
	assert.Error(t, m.SaveDomainMetrics(ctx, dm))
	assert.ErrorIs(t, m.SaveDomainMetrics(ctx, analysis.DomainMetrics{RunID: "zz"}), analysis.ErrRunNotFound)
	assert.ErrorIs(t, m.CloseRun(ctx, &analysis.Run{ID: "zz"}), analysis.ErrRunNotFound)
}
