package cases

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Fallback replaces placeholders that have no value.
const Fallback = "—"

var (
	placeholder = regexp.MustCompile(`\{\{[^{}]*\}\}`)
	leftover    = regexp.MustCompile(`(?s)\{\{.*?\}\}`)
)

// BuildInstance renders entry with values. The caller owns the narrative order.
func BuildInstance(entry CatalogEntry, values map[string]any, order int) Instance {
	body := joinSections(
		Fill(entry.Cuerpo, values),
		Fill(entry.CuerpoExtendido, values),
		Fill(entry.Explicacion, values),
		Fill(entry.FAQs, values),
	)
	action := joinSections(
		Fill(entry.Accion, values),
		Fill(entry.AccionDetallada, values),
	)

	return Instance{
		CasoID:         entry.ID,
		Modulo:         entry.Modulo,
		Severidad:      entry.Severidad,
		Prioridad:      entry.Prioridad,
		Titulo:         Fill(entry.Titulo, values),
		Lead:           Fill(entry.Lead, values),
		Cuerpo:         body,
		Accion:         action,
		KPI:            Fill(entry.KPI, values),
		ValoresJSON:    encodeValues(values),
		OrdenNarrativo: order,
	}
}

// Fill substitutes every {{KEY}} present in values in a single pass and
// replaces whatever is left with Fallback. Substituted text is not scanned
// for further keys. The result never contains a {{...}} token.
func Fill(tpl string, values map[string]any) string {
	if tpl == "" {
		return ""
	}

	out := placeholder.ReplaceAllStringFunc(tpl, func(tok string) string {
		v, ok := values[tok[2:len(tok)-2]]
		if !ok {
			return Fallback
		}
		return format(v)
	})

	// Substituted values may themselves carry braces; loop until stable.
	for leftover.MatchString(out) {
		out = leftover.ReplaceAllLiteralString(out, Fallback)
	}
	return out
}

func format(v any) string {
	switch x := v.(type) {
	case nil:
		return Fallback
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	}
	return fmt.Sprint(v)
}

func joinSections(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

func encodeValues(values map[string]any) string {
	if values == nil {
		return "{}"
	}
	b, err := json.Marshal(values)
	if err != nil {
		// Unserializable values still get a trace of their keys.
		safe := make(map[string]string, len(values))
		for k, v := range values {
			safe[k] = fmt.Sprint(v)
		}
		b, _ = json.Marshal(safe)
	}
	return string(b)
}

// Visible reports whether entry takes part in a run with the given narrative
// mode. The executive narrative drops technical and short entries.
func Visible(entry CatalogEntry, mode string) bool {
	if !strings.EqualFold(mode, ModeEjecutivo) {
		return true
	}
	audience := strings.ToLower(strings.TrimSpace(entry.Audiencia))
	level := strings.ToLower(strings.TrimSpace(entry.Nivel))
	if strings.HasPrefix(audience, "tecnic") || strings.HasPrefix(audience, "técnic") {
		return false
	}
	return level != "corto"
}
