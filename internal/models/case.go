package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/tensai-22/penal-sub001/internal/urgency"
)

// FlexString is a JSON string that also accepts numbers and null. The backend
// sends plazo_atencion as text for absolute deadlines and sometimes as a bare
// number for business-day terms.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = FlexString(n.String())
	return nil
}

// String returns the raw text.
func (s FlexString) String() string { return string(s) }

// CaseRecord is one case file as returned by the backend. Fields this service
// does not know about are kept in Extra and written back unchanged.
type CaseRecord struct {
	RegistroPPU     string     `json:"registro_ppu"`
	Abogado         string     `json:"abogado,omitempty"`
	Fiscalia        string     `json:"fiscalia,omitempty"`
	Despacho        string     `json:"despacho,omitempty"`
	Estado          string     `json:"estado,omitempty"`
	Etiqueta        string     `json:"etiqueta,omitempty"`
	UltimaSituacion string     `json:"ultima_situacion,omitempty"`
	FechaIngreso    string     `json:"fecha_ingreso,omitempty"`
	FechaAtencion   FlexString `json:"fecha_atencion"`
	PlazoAtencion   FlexString `json:"plazo_atencion"`

	Extra map[string]json.RawMessage `json:"-"`
}

type caseRecordFields CaseRecord

var caseRecordKeys = map[string]bool{
	"registro_ppu":     true,
	"abogado":          true,
	"fiscalia":         true,
	"despacho":         true,
	"estado":           true,
	"etiqueta":         true,
	"ultima_situacion": true,
	"fecha_ingreso":    true,
	"fecha_atencion":   true,
	"plazo_atencion":   true,
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *CaseRecord) UnmarshalJSON(data []byte) error {
	var fields caseRecordFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k := range caseRecordKeys {
		delete(all, k)
	}
	*c = CaseRecord(fields)
	if len(all) > 0 {
		c.Extra = all
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (c CaseRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.fieldMap())
}

func (c CaseRecord) fieldMap() map[string]any {
	m := make(map[string]any, len(c.Extra)+len(caseRecordKeys))
	for k, v := range c.Extra {
		m[k] = v
	}
	m["registro_ppu"] = c.RegistroPPU
	m["fecha_atencion"] = c.FechaAtencion
	m["plazo_atencion"] = c.PlazoAtencion
	optional := map[string]string{
		"abogado":          c.Abogado,
		"fiscalia":         c.Fiscalia,
		"despacho":         c.Despacho,
		"estado":           c.Estado,
		"etiqueta":         c.Etiqueta,
		"ultima_situacion": c.UltimaSituacion,
		"fecha_ingreso":    c.FechaIngreso,
	}
	for k, v := range optional {
		if v != "" {
			m[k] = v
		}
	}
	return m
}

// CaseView is a case record decorated with its urgency.
type CaseView struct {
	CaseRecord
	DiasRestantes  string        `json:"dias_restantes"`
	UrgencySortKey float64       `json:"urgency_sort_key"`
	UrgencyClass   urgency.Class `json:"urgency_class"`
}

// NewCaseView attaches res to rec.
func NewCaseView(rec CaseRecord, res urgency.Result) CaseView {
	return CaseView{
		CaseRecord:     rec,
		DiasRestantes:  res.Label,
		UrgencySortKey: res.SortKey,
		UrgencyClass:   res.Class,
	}
}

// Urgency returns the attached result.
func (v CaseView) Urgency() urgency.Result {
	return urgency.Result{Label: v.DiasRestantes, SortKey: v.UrgencySortKey, Class: v.UrgencyClass}
}

// MarshalJSON implements json.Marshaler.
func (v CaseView) MarshalJSON() ([]byte, error) {
	m := v.CaseRecord.fieldMap()
	m["dias_restantes"] = v.DiasRestantes
	m["urgency_sort_key"] = json.Number(strconv.FormatFloat(v.UrgencySortKey, 'f', -1, 64))
	m["urgency_class"] = v.UrgencyClass
	return json.Marshal(m)
}

// CasePage is one page of decorated case records.
type CasePage struct {
	Items       []CaseView `json:"items"`
	Page        int        `json:"page"`
	PageSize    int        `json:"page_size"`
	Total       int        `json:"total"`
	TotalPages  int        `json:"total_pages"`
	EvaluatedAt time.Time  `json:"evaluated_at"`
}

// CaseSummary counts case records per urgency class.
type CaseSummary struct {
	Total       int                   `json:"total"`
	Counts      map[urgency.Class]int `json:"counts"`
	MostUrgent  []CaseView            `json:"most_urgent"`
	EvaluatedAt time.Time             `json:"evaluated_at"`
}
