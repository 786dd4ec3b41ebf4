package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analisis-mcp/internal/analysis"
	"analisis-mcp/internal/cases"
	"analisis-mcp/internal/rules"
)

func newMock(t *testing.T) (*MySQL, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return NewMySQL(db), mock
}

func TestMySQL_Migrate(t *testing.T) {
	s, mock := newMock(t)
	for range schema {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, s.Migrate(context.Background()))
}

func TestMySQL_SchemaAvoidsReservedWords(t *testing.T) {
	// Window function names became reserved in MySQL 8.0.2.
	reserved := regexp.MustCompile(`(?im)^\s*(lead|lag|rank|row|rows|groups|window|over|system)\s`)
	for _, stmt := range schema {
		assert.False(t, reserved.MatchString(stmt), "reserved column name in:\n%s", stmt)
	}
	assert.Contains(t, schema[5], "entradilla      TEXT")
	assert.Contains(t, schema[7], "entradilla       TEXT")
}

func TestMySQL_ListCases(t *testing.T) {
	s, mock := newMock(t)

	cols := []string{"caso_id", "modulo", "severidad", "prioridad", "titulo", "entradilla", "cuerpo",
		"accion", "kpi", "valores_json", "orden_narrativo"}
	mock.ExpectQuery(`SELECT caso_id, modulo, severidad, prioridad, titulo, COALESCE\(entradilla, ''\)`).
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("CRON-001", "cronograma", 3, 1, "t", "l", "c", "a", "k", "{}", 1))

	got, err := s.ListCases(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "l", got[0].Lead)
	assert.Equal(t, "run-1", got[0].RunID)
}

func TestMySQL_GetProject(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectQuery("FROM proyectos WHERE id = ?").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "nombre", "activo", "gestor"}).
			AddRow(42, "Cobranza Bogotá", true, "Marta"))
	mock.ExpectQuery("FROM proyectos WHERE id = ?").
		WithArgs(int64(7)).
		WillReturnError(sql.ErrNoRows)

	p, err := s.GetProject(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, analysis.Project{ID: 42, Nombre: "Cobranza Bogotá", Activo: true, Gestor: "Marta"}, *p)

	_, err = s.GetProject(ctx, 7)
	assert.ErrorIs(t, err, analysis.ErrProjectNotFound)
}

func TestMySQL_ListTasks(t *testing.T) {
	s, mock := newMock(t)

	cols := []string{"id", "proyecto_id", "padre_id", "nombre", "estado", "porcentaje",
		"dias_atraso", "dias_restantes", "responsable_id", "responsable_nombre"}
	mock.ExpectQuery("FROM tareas").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, 42, nil, "Fase 1", "en curso", 40.0, 0, 10, 0, "").
			AddRow(2, 42, 1, "Llamadas", "completada", 100.0, 0, 0, 5, "Ana").
			AddRow(3, 42, 1, "Sin fecha", "en curso", 10.0, 0, nil, 5, "Ana"))

	tasks, err := s.ListTasks(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.False(t, tasks[1].SinPlazo)
	assert.True(t, tasks[2].SinPlazo, "NULL dias_restantes means no due date")
	assert.Equal(t, 0, tasks[2].DiasRestantes)
	assert.Nil(t, tasks[0].PadreID)
	require.NotNil(t, tasks[1].PadreID)
	assert.Equal(t, int64(1), *tasks[1].PadreID)
	assert.Equal(t, "Ana", tasks[1].ResponsableNombre)
}

func TestMySQL_ListAssignments_Error(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("FROM tarea_asignaciones").WithArgs(int64(42)).WillReturnError(errors.New("boom"))

	_, err := s.ListAssignments(context.Background(), 42)
	assert.ErrorContains(t, err, "list assignments")
}

func TestMySQL_RunLifecycle(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Second)

	run := &analysis.Run{
		ID: "run-1", ProyectoID: 42, ProyectoNombre: "Cobranza", Modo: "completo",
		Estado: analysis.RunRunning, Inicio: start,
	}

	mock.ExpectExec("INSERT INTO analisis_runs").
		WithArgs("run-1", int64(42), "Cobranza", "completo", "running", start).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO analisis_metricas").
		WithArgs("run-1", "cronograma", 79.5, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE analisis_runs").
		WithArgs("completed", end, 78.43, "verde", "resumen", nil, nil, "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE analisis_runs").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.CreateRun(ctx, run))
	require.NoError(t, s.SaveDomainMetrics(ctx, analysis.DomainMetrics{
		RunID: "run-1", Dominio: "cronograma", Score: 79.5, Metricas: analysis.ScheduleMetrics{Score: 79.5},
	}))

	run.Estado = analysis.RunCompleted
	run.Fin = &end
	run.Score = 78.43
	run.Semaforo = "verde"
	run.Resumen = "resumen"
	require.NoError(t, s.CloseRun(ctx, run))

	ghost := *run
	ghost.ID = "ghost"
	assert.ErrorIs(t, s.CloseRun(ctx, &ghost), analysis.ErrRunNotFound)
}

func TestMySQL_SaveCases(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO analisis_casos\s+\(run_id, caso_id, modulo, severidad, prioridad, titulo, entradilla, cuerpo`)
	prep.ExpectExec().
		WithArgs("run-1", "CRON-001", "cronograma", 3, 1, "t", "l", "c", "a", "k", "{}", 1).
		WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().
		WithArgs("run-1", "FIN-001", "finanzas", 2, 1, "t", "l", "c", "a", "k", "{}", 2).
		WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	err := s.SaveCases(context.Background(), "run-1", []cases.Instance{
		{CasoID: "CRON-001", Modulo: "cronograma", Severidad: 3, Prioridad: 1, Titulo: "t", Lead: "l", Cuerpo: "c", Accion: "a", KPI: "k", ValoresJSON: "{}", OrdenNarrativo: 1},
		{CasoID: "FIN-001", Modulo: "finanzas", Severidad: 2, Prioridad: 1, Titulo: "t", Lead: "l", Cuerpo: "c", Accion: "a", KPI: "k", ValoresJSON: "{}", OrdenNarrativo: 2},
	})
	assert.ErrorContains(t, err, "insert case FIN-001")
}

func TestMySQL_SaveSections(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO analisis_secciones")
	prep.ExpectExec().WithArgs("run-1", "cronograma", "Cronograma & Tareas", "<ul></ul>", 0, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.SaveSections(context.Background(), "run-1", []analysis.Section{
		{Clave: "cronograma", Titulo: "Cronograma & Tareas", HTML: "<ul></ul>", Orden: 1},
	}))
}

func TestMySQL_GetRun(t *testing.T) {
	s, mock := newMock(t)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	cols := []string{"run_id", "proyecto_id", "proyecto_nombre", "modo", "estado", "inicio", "fin",
		"score", "semaforo", "resumen", "error", "case_error"}
	mock.ExpectQuery("FROM analisis_runs r WHERE r.run_id = ?").
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("run-1", 42, "Cobranza", "completo", "completed", start, start.Add(time.Minute),
				72.8, "amarillo", "resumen", "", ""))
	mock.ExpectQuery("FROM analisis_runs r WHERE r.run_id = ?").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(cols))

	r, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, analysis.RunCompleted, r.Estado)
	assert.Equal(t, 72.8, r.Score)
	require.NotNil(t, r.Fin)
	assert.Equal(t, start.Add(time.Minute), *r.Fin)

	_, err = s.GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, analysis.ErrRunNotFound)
}

func TestBuildRunQuery(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		filter   analysis.RunFilter
		contains []string
		args     []any
	}{
		{
			name:     "DefaultLimit",
			filter:   analysis.RunFilter{},
			contains: []string{"ORDER BY r.inicio DESC LIMIT ?"},
			args:     []any{50},
		},
		{
			name: "AllFilters",
			filter: analysis.RunFilter{
				ProyectoID: 42, SoloActivos: true, Estado: analysis.RunCompleted,
				Semaforo: "rojo", Desde: from, Texto: " cobranza ", Limite: 900,
			},
			contains: []string{
				"r.proyecto_id = ?", "p.activo = 1", "r.estado = ?", "r.semaforo = ?",
				"r.inicio >= ?", "(r.proyecto_nombre LIKE ? OR r.resumen LIKE ?)",
			},
			args: []any{int64(42), "completed", "rojo", from, "%cobranza%", "%cobranza%", 500},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := buildRunQuery(tt.filter)
			for _, frag := range tt.contains {
				assert.Contains(t, query, frag)
			}
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestMySQL_ListCasos(t *testing.T) {
	s, mock := newMock(t)

	cols := []string{"id", "modulo", "severidad", "prioridad", "regla_json", "audiencia", "nivel",
		"titulo", "entradilla", "cuerpo", "cuerpo_extendido", "explicacion", "faqs", "accion",
		"accion_detallada", "kpi"}
	mock.ExpectQuery(`titulo, COALESCE\(entradilla, ''\), COALESCE\(cuerpo, ''\).*FROM casos_catalogo`).
		WithArgs("finanzas").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("FIN-001", "finanzas", 3, 1, []byte(`{"<":[{"var":"finanzas.cpi"},1]}`), "general", "completo",
				"CPI {{CPI}}", "", "", "", "", "", "", "", "").
			AddRow("FIN-009", "finanzas", 1, 9, []byte(`{not json`), "", "", "roto", "", "", "", "", "", "", "", ""))

	entries, err := s.ListCasos(context.Background(), "finanzas")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	low := rules.Map{"finanzas": rules.Map{"cpi": 0.8}}
	assert.True(t, rules.Evaluate(entries[0].Regla, low))
	assert.False(t, rules.Evaluate(entries[1].Regla, low), "unparseable rule must never match")
}

func TestMySQL_SeedCatalog(t *testing.T) {
	s, mock := newMock(t)
	cat, err := cases.LoadCatalog("")
	require.NoError(t, err)
	entries := cat.All()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO casos_catalogo[\s\S]+titulo, entradilla, cuerpo[\s\S]+entradilla = VALUES\(entradilla\)`)
	for range entries {
		prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, s.SeedCatalog(context.Background(), entries))
}

func TestMySQLConfig_FormatDSN(t *testing.T) {
	cfg := MySQLConfig{Host: "db", Port: "3306", User: "u", Password: "p", Database: "analisis"}
	dsn := cfg.FormatDSN()
	assert.Contains(t, dsn, "u:p@tcp(db:3306)/analisis")
	assert.Contains(t, dsn, "parseTime=true")

	assert.Equal(t, "raw", MySQLConfig{DSN: "raw", Host: "ignored"}.FormatDSN())
}
