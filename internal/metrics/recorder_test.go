package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analisis-mcp/internal/analysis"
	"analisis-mcp/internal/cases"
	"analisis-mcp/internal/progress"
	"analisis-mcp/internal/store"
)

func TestRecorder_Observer(t *testing.T) {
	r := NewRecorder(nil)

	r.StageFinished("recursos", 120*time.Millisecond, nil)
	r.StageFinished("recursos", time.Second, errors.New("db down"))
	r.CasesGenerated("cronograma", 3)
	r.CasesGenerated("cronograma", 1)
	r.CasesGenerated("riesgos", 0)
	r.RunFinished(analysis.RunCompleted, "verde", 2*time.Second)
	r.RunFinished(analysis.RunFailed, "", time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.StageFailures.WithLabelValues("recursos")))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.CasesTotal.WithLabelValues("cronograma")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.CasesTotal.WithLabelValues("riesgos")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RunsTotal.WithLabelValues("completed", "verde")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RunsTotal.WithLabelValues("failed", "ninguno")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.StageDuration))
}

func TestRecorder_PipelineRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	m := store.NewMemory("")
	m.AddFixture(store.Fixture{
		Proyectos: []analysis.Project{{ID: 1, Nombre: "P", Activo: true}},
		Tareas:    []analysis.Task{{ID: 10, ProyectoID: 1, Nombre: "T", Porcentaje: 50, DiasRestantes: 10}},
	})
	cat, err := cases.LoadCatalog("")
	require.NoError(t, err)

	p := analysis.NewPipeline(m, m, cat, progress.NewMemoryStore(), analysis.Options{Observer: r})
	run, err := p.AnalyzeProject(context.Background(), 1, cases.ModeCompleto)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.RunsTotal.WithLabelValues("completed", run.Semaforo)))
	assert.Equal(t, 3, testutil.CollectAndCount(r.StageDuration), "one series per domain stage")
	assert.Equal(t, len(cases.Modules), testutil.CollectAndCount(r.CasesTotal))
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder(nil)
	r.RunFinished(analysis.RunCompleted, "rojo", time.Second)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), `analisis_runs_total{estado="completed",semaforo="rojo"} 1`), string(body))
}
