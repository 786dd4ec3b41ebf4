// Package store holds the data-access implementations used by the analysis
// pipeline, the report surfaces and the CLI.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"analisis-mcp/internal/analysis"
	"analisis-mcp/internal/cases"
	"analisis-mcp/internal/rules"
)

// MySQLConfig selects the database. DSN wins over the discrete fields.
type MySQLConfig struct {
	DSN      string
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

// FormatDSN builds a driver DSN with time parsing enabled.
func (c MySQLConfig) FormatDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = c.Host + ":" + c.Port
	cfg.DBName = c.Database
	cfg.ParseTime = true
	cfg.Loc = time.Local
	return cfg.FormatDSN()
}

// MySQL implements the pipeline's DataSource and Sink, the report Reader and
// the case Catalog over one connection pool.
type MySQL struct {
	db *sql.DB
}

// NewMySQL wraps an open handle.
func NewMySQL(db *sql.DB) *MySQL {
	return &MySQL{db: db}
}

// OpenMySQL opens and pings a pooled connection.
func OpenMySQL(ctx context.Context, cfg MySQLConfig) (*MySQL, error) {
	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	// Sized for the three concurrent domain stages plus report readers.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	log.Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("Connected to MySQL")
	return &MySQL{db: db}, nil
}

func (s *MySQL) Close() error {
	return s.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS proyectos (
		id     BIGINT       NOT NULL PRIMARY KEY,
		nombre VARCHAR(255) NOT NULL,
		activo TINYINT(1)   NOT NULL DEFAULT 1,
		gestor VARCHAR(255) NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tareas (
		id                 BIGINT        NOT NULL PRIMARY KEY,
		proyecto_id        BIGINT        NOT NULL,
		padre_id           BIGINT        NULL,
		nombre             VARCHAR(255)  NOT NULL,
		estado             VARCHAR(64)   NULL,
		porcentaje         DECIMAL(5,2)  NULL,
		dias_atraso        INT           NULL,
		dias_restantes     INT           NULL,
		responsable_id     BIGINT        NULL,
		responsable_nombre VARCHAR(255)  NULL,
		INDEX idx_tareas_proyecto (proyecto_id)
	)`,
	`CREATE TABLE IF NOT EXISTS tarea_asignaciones (
		tarea_id       BIGINT       NOT NULL,
		usuario_id     BIGINT       NOT NULL,
		usuario_nombre VARCHAR(255) NULL,
		PRIMARY KEY (tarea_id, usuario_id)
	)`,
	`CREATE TABLE IF NOT EXISTS analisis_runs (
		run_id          CHAR(36)     NOT NULL PRIMARY KEY,
		proyecto_id     BIGINT       NOT NULL,
		proyecto_nombre VARCHAR(255) NOT NULL,
		modo            VARCHAR(16)  NOT NULL,
		estado          VARCHAR(16)  NOT NULL,
		inicio          DATETIME(3)  NOT NULL,
		fin             DATETIME(3)  NULL,
		score           DECIMAL(5,2) NULL,
		semaforo        VARCHAR(16)  NULL,
		resumen         TEXT         NULL,
		error           TEXT         NULL,
		case_error      TEXT         NULL,
		INDEX idx_runs_proyecto (proyecto_id, inicio)
	)`,
	`CREATE TABLE IF NOT EXISTS analisis_metricas (
		run_id   CHAR(36)     NOT NULL,
		dominio  VARCHAR(32)  NOT NULL,
		score    DECIMAL(5,2) NOT NULL,
		metricas JSON         NOT NULL,
		PRIMARY KEY (run_id, dominio)
	)`,
	`CREATE TABLE IF NOT EXISTS analisis_casos (
		id              BIGINT AUTO_INCREMENT PRIMARY KEY,
		run_id          CHAR(36)     NOT NULL,
		caso_id         VARCHAR(64)  NOT NULL,
		modulo          VARCHAR(32)  NOT NULL,
		severidad       TINYINT      NOT NULL,
		prioridad       INT          NOT NULL,
		titulo          TEXT         NOT NULL,
		entradilla      TEXT         NULL,
		cuerpo          TEXT         NULL,
		accion          TEXT         NULL,
		kpi             TEXT         NULL,
		valores_json    JSON         NOT NULL,
		orden_narrativo INT          NOT NULL,
		INDEX idx_casos_run (run_id, orden_narrativo)
	)`,
	`CREATE TABLE IF NOT EXISTS analisis_secciones (
		run_id   CHAR(36)     NOT NULL,
		clave    VARCHAR(32)  NOT NULL,
		titulo   VARCHAR(255) NOT NULL,
		html     MEDIUMTEXT   NOT NULL,
		palabras INT          NOT NULL,
		orden    INT          NOT NULL,
		PRIMARY KEY (run_id, clave)
	)`,
	`CREATE TABLE IF NOT EXISTS casos_catalogo (
		id               VARCHAR(64)  NOT NULL PRIMARY KEY,
		modulo           VARCHAR(32)  NOT NULL,
		severidad        TINYINT      NOT NULL,
		prioridad        INT          NOT NULL,
		regla_json       JSON         NOT NULL,
		audiencia        VARCHAR(32)  NULL,
		nivel            VARCHAR(32)  NULL,
		titulo           TEXT         NOT NULL,
		entradilla       TEXT         NULL,
		cuerpo           TEXT         NULL,
		cuerpo_extendido TEXT         NULL,
		explicacion      TEXT         NULL,
		faqs             TEXT         NULL,
		accion           TEXT         NULL,
		accion_detallada TEXT         NULL,
		kpi              TEXT         NULL,
		orden            INT          NOT NULL DEFAULT 0,
		activo           TINYINT(1)   NOT NULL DEFAULT 1,
		INDEX idx_catalogo_modulo (modulo, orden)
	)`,
}

// Migrate creates every table the engine uses if it does not exist yet.
func (s *MySQL) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	log.Info().Int("tables", len(schema)).Msg("MySQL schema verified")
	return nil
}

// GetProject returns the project row or analysis.ErrProjectNotFound.
func (s *MySQL) GetProject(ctx context.Context, id int64) (*analysis.Project, error) {
	var p analysis.Project
	err := s.db.QueryRowContext(ctx,
		`SELECT id, nombre, activo, COALESCE(gestor, '') FROM proyectos WHERE id = ?`, id,
	).Scan(&p.ID, &p.Nombre, &p.Activo, &p.Gestor)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", analysis.ErrProjectNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

// ListTasks returns every WBS row of a project, parents included.
func (s *MySQL) ListTasks(ctx context.Context, projectID int64) ([]analysis.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, proyecto_id, padre_id, nombre, COALESCE(estado, ''), COALESCE(porcentaje, 0),
		       COALESCE(dias_atraso, 0), dias_restantes,
		       COALESCE(responsable_id, 0), COALESCE(responsable_nombre, '')
		FROM tareas
		WHERE proyecto_id = ?
		ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []analysis.Task
	for rows.Next() {
		var (
			t         analysis.Task
			parent    sql.NullInt64
			remaining sql.NullInt64
		)
		if err := rows.Scan(&t.ID, &t.ProyectoID, &parent, &t.Nombre, &t.Estado, &t.Porcentaje,
			&t.DiasAtraso, &remaining, &t.ResponsableID, &t.ResponsableNombre); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if parent.Valid {
			id := parent.Int64
			t.PadreID = &id
		}
		t.DiasRestantes = int(remaining.Int64)
		t.SinPlazo = !remaining.Valid
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// ListAssignments returns the multi-user assignments of a project's tasks.
func (s *MySQL) ListAssignments(ctx context.Context, projectID int64) ([]analysis.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.tarea_id, a.usuario_id, COALESCE(a.usuario_nombre, '')
		FROM tarea_asignaciones a
		JOIN tareas t ON t.id = a.tarea_id
		WHERE t.proyecto_id = ?
		ORDER BY a.tarea_id, a.usuario_id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var out []analysis.Assignment
	for rows.Next() {
		var a analysis.Assignment
		if err := rows.Scan(&a.TareaID, &a.UsuarioID, &a.UsuarioNombre); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignments: %w", err)
	}
	return out, nil
}

func (s *MySQL) CreateRun(ctx context.Context, run *analysis.Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analisis_runs (run_id, proyecto_id, proyecto_nombre, modo, estado, inicio)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.ProyectoID, run.ProyectoNombre, run.Modo, string(run.Estado), run.Inicio)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// SaveDomainMetrics inserts the domain row. A second write for the same run
// and domain is rejected by the primary key.
func (s *MySQL) SaveDomainMetrics(ctx context.Context, m analysis.DomainMetrics) error {
	payload, err := json.Marshal(m.Metricas)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analisis_metricas (run_id, dominio, score, metricas)
		VALUES (?, ?, ?, ?)`,
		m.RunID, m.Dominio, m.Score, payload)
	if err != nil {
		return fmt.Errorf("save %s metrics: %w", m.Dominio, err)
	}
	return nil
}

// SaveCases writes all instances of a run in one transaction.
func (s *MySQL) SaveCases(ctx context.Context, runID string, instances []cases.Instance) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO analisis_casos
				(run_id, caso_id, modulo, severidad, prioridad, titulo, entradilla, cuerpo, accion, kpi, valores_json, orden_narrativo)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare case insert: %w", err)
		}
		defer stmt.Close()

		for _, c := range instances {
			if _, err := stmt.ExecContext(ctx, runID, c.CasoID, c.Modulo, c.Severidad, c.Prioridad,
				c.Titulo, c.Lead, c.Cuerpo, c.Accion, c.KPI, c.ValoresJSON, c.OrdenNarrativo); err != nil {
				return fmt.Errorf("insert case %s: %w", c.CasoID, err)
			}
		}
		return nil
	})
}

// SaveSections writes the report sections of a run in one transaction.
func (s *MySQL) SaveSections(ctx context.Context, runID string, sections []analysis.Section) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO analisis_secciones (run_id, clave, titulo, html, palabras, orden)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare section insert: %w", err)
		}
		defer stmt.Close()

		for _, sec := range sections {
			if _, err := stmt.ExecContext(ctx, runID, sec.Clave, sec.Titulo, sec.HTML, sec.Palabras, sec.Orden); err != nil {
				return fmt.Errorf("insert section %s: %w", sec.Clave, err)
			}
		}
		return nil
	})
}

// CloseRun writes the terminal fields of a run.
func (s *MySQL) CloseRun(ctx context.Context, run *analysis.Run) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE analisis_runs
		SET estado = ?, fin = ?, score = ?, semaforo = ?, resumen = ?, error = ?, case_error = ?
		WHERE run_id = ?`,
		string(run.Estado), run.Fin, run.Score, nullString(run.Semaforo), nullString(run.Resumen),
		nullString(run.Error), nullString(run.CaseError), run.ID)
	if err != nil {
		return fmt.Errorf("close run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("close run: %w: %s", analysis.ErrRunNotFound, run.ID)
	}
	return nil
}

const runColumns = `r.run_id, r.proyecto_id, r.proyecto_nombre, r.modo, r.estado, r.inicio, r.fin,
	COALESCE(r.score, 0), COALESCE(r.semaforo, ''), COALESCE(r.resumen, ''),
	COALESCE(r.error, ''), COALESCE(r.case_error, '')`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (analysis.Run, error) {
	var (
		r     analysis.Run
		state string
		fin   sql.NullTime
	)
	err := row.Scan(&r.ID, &r.ProyectoID, &r.ProyectoNombre, &r.Modo, &state, &r.Inicio, &fin,
		&r.Score, &r.Semaforo, &r.Resumen, &r.Error, &r.CaseError)
	if err != nil {
		return r, err
	}
	r.Estado = analysis.RunState(state)
	if fin.Valid {
		t := fin.Time
		r.Fin = &t
	}
	return r, nil
}

// GetRun returns one run or analysis.ErrRunNotFound.
func (s *MySQL) GetRun(ctx context.Context, runID string) (*analysis.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM analisis_runs r WHERE r.run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", analysis.ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &r, nil
}

// ListRuns returns historical runs, newest first.
func (s *MySQL) ListRuns(ctx context.Context, f analysis.RunFilter) ([]analysis.Run, error) {
	query, args := buildRunQuery(f)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []analysis.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

func buildRunQuery(f analysis.RunFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if f.ProyectoID != 0 {
		where = append(where, "r.proyecto_id = ?")
		args = append(args, f.ProyectoID)
	}
	if f.SoloActivos {
		where = append(where, "p.activo = 1")
	}
	if f.Estado != "" {
		where = append(where, "r.estado = ?")
		args = append(args, string(f.Estado))
	}
	if f.Semaforo != "" {
		where = append(where, "r.semaforo = ?")
		args = append(args, f.Semaforo)
	}
	if !f.Desde.IsZero() {
		where = append(where, "r.inicio >= ?")
		args = append(args, f.Desde)
	}
	if !f.Hasta.IsZero() {
		where = append(where, "r.inicio < ?")
		args = append(args, f.Hasta)
	}
	if text := strings.TrimSpace(f.Texto); text != "" {
		like := "%" + text + "%"
		where = append(where, "(r.proyecto_nombre LIKE ? OR r.resumen LIKE ?)")
		args = append(args, like, like)
	}

	var b strings.Builder
	b.WriteString("SELECT " + runColumns + " FROM analisis_runs r LEFT JOIN proyectos p ON p.id = r.proyecto_id")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY r.inicio DESC LIMIT ?")
	args = append(args, f.EffectiveLimit())
	return b.String(), args
}

// ListMetrics returns the domain rows of a run with their raw JSON payload.
func (s *MySQL) ListMetrics(ctx context.Context, runID string) ([]analysis.DomainMetrics, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT dominio, score, metricas FROM analisis_metricas WHERE run_id = ? ORDER BY dominio`, runID)
	if err != nil {
		return nil, fmt.Errorf("list metrics: %w", err)
	}
	defer rows.Close()

	var out []analysis.DomainMetrics
	for rows.Next() {
		m := analysis.DomainMetrics{RunID: runID}
		var payload []byte
		if err := rows.Scan(&m.Dominio, &m.Score, &payload); err != nil {
			return nil, fmt.Errorf("scan metrics: %w", err)
		}
		m.Metricas = json.RawMessage(payload)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metrics: %w", err)
	}
	return out, nil
}

// ListCases returns the case instances of a run in narrative order.
func (s *MySQL) ListCases(ctx context.Context, runID string) ([]cases.Instance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT caso_id, modulo, severidad, prioridad, titulo, COALESCE(entradilla, ''), COALESCE(cuerpo, ''),
		       COALESCE(accion, ''), COALESCE(kpi, ''), valores_json, orden_narrativo
		FROM analisis_casos
		WHERE run_id = ?
		ORDER BY orden_narrativo`, runID)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	var out []cases.Instance
	for rows.Next() {
		c := cases.Instance{RunID: runID}
		if err := rows.Scan(&c.CasoID, &c.Modulo, &c.Severidad, &c.Prioridad, &c.Titulo, &c.Lead,
			&c.Cuerpo, &c.Accion, &c.KPI, &c.ValoresJSON, &c.OrdenNarrativo); err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return out, nil
}

// ListSections returns the report sections of a run in display order.
func (s *MySQL) ListSections(ctx context.Context, runID string) ([]analysis.Section, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT clave, titulo, html, palabras, orden
		FROM analisis_secciones
		WHERE run_id = ?
		ORDER BY orden`, runID)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()

	var out []analysis.Section
	for rows.Next() {
		sec := analysis.Section{RunID: runID}
		if err := rows.Scan(&sec.Clave, &sec.Titulo, &sec.HTML, &sec.Palabras, &sec.Orden); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		out = append(out, sec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sections: %w", err)
	}
	return out, nil
}

// ListCasos serves the case catalog from casos_catalogo. A rule that does not
// parse is kept but never matches.
func (s *MySQL) ListCasos(ctx context.Context, module string) ([]cases.CatalogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, modulo, severidad, prioridad, regla_json, COALESCE(audiencia, ''), COALESCE(nivel, ''),
		       titulo, COALESCE(entradilla, ''), COALESCE(cuerpo, ''), COALESCE(cuerpo_extendido, ''),
		       COALESCE(explicacion, ''), COALESCE(faqs, ''), COALESCE(accion, ''),
		       COALESCE(accion_detallada, ''), COALESCE(kpi, '')
		FROM casos_catalogo
		WHERE modulo = ? AND activo = 1
		ORDER BY orden, id`, module)
	if err != nil {
		return nil, fmt.Errorf("list casos %s: %w", module, err)
	}
	defer rows.Close()

	var out []cases.CatalogEntry
	for rows.Next() {
		var (
			e    cases.CatalogEntry
			rule []byte
		)
		if err := rows.Scan(&e.ID, &e.Modulo, &e.Severidad, &e.Prioridad, &rule, &e.Audiencia, &e.Nivel,
			&e.Titulo, &e.Lead, &e.Cuerpo, &e.CuerpoExtendido, &e.Explicacion, &e.FAQs, &e.Accion,
			&e.AccionDetallada, &e.KPI); err != nil {
			return nil, fmt.Errorf("scan caso: %w", err)
		}
		if e.Regla, err = rules.Parse(rule); err != nil {
			log.Warn().Err(err).Str("caso", e.ID).Msg("Case rule unreadable, entry will never match")
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate casos: %w", err)
	}
	return out, nil
}

// SeedCatalog upserts catalog entries, keeping their slice order.
func (s *MySQL) SeedCatalog(ctx context.Context, entries []cases.CatalogEntry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO casos_catalogo
				(id, modulo, severidad, prioridad, regla_json, audiencia, nivel, titulo, entradilla, cuerpo,
				 cuerpo_extendido, explicacion, faqs, accion, accion_detallada, kpi, orden, activo)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
			ON DUPLICATE KEY UPDATE
				modulo = VALUES(modulo), severidad = VALUES(severidad), prioridad = VALUES(prioridad),
				regla_json = VALUES(regla_json), audiencia = VALUES(audiencia), nivel = VALUES(nivel),
				titulo = VALUES(titulo), entradilla = VALUES(entradilla), cuerpo = VALUES(cuerpo),
				cuerpo_extendido = VALUES(cuerpo_extendido), explicacion = VALUES(explicacion),
				faqs = VALUES(faqs), accion = VALUES(accion), accion_detallada = VALUES(accion_detallada),
				kpi = VALUES(kpi), orden = VALUES(orden), activo = 1`)
		if err != nil {
			return fmt.Errorf("prepare catalog upsert: %w", err)
		}
		defer stmt.Close()

		for i, e := range entries {
			rule, err := json.Marshal(e.Regla)
			if err != nil {
				return fmt.Errorf("encode rule %s: %w", e.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, e.ID, e.Modulo, e.Severidad, e.Prioridad, rule, e.Audiencia,
				e.Nivel, e.Titulo, e.Lead, e.Cuerpo, e.CuerpoExtendido, e.Explicacion, e.FAQs, e.Accion,
				e.AccionDetallada, e.KPI, i+1); err != nil {
				return fmt.Errorf("upsert caso %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

func (s *MySQL) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
