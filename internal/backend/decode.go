package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tensai-22/penal-sub001/internal/models"
)

// caseList decodes either a bare JSON array of records or an object
// wrapping it under "data" or "items".
type caseList []models.CaseRecord

func (l *caseList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var records []models.CaseRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return err
		}
		*l = records
		return nil
	}

	var env struct {
		Data  []models.CaseRecord `json:"data"`
		Items []models.CaseRecord `json:"items"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("unexpected case list payload: %w", err)
	}
	if env.Data != nil {
		*l = env.Data
	} else {
		*l = env.Items
	}
	return nil
}

// DecodeCases parses a case list payload in any of the shapes the backend sends
func DecodeCases(data []byte) ([]models.CaseRecord, error) {
	var records caseList
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func decodeCase(raw json.RawMessage) (*models.CaseRecord, error) {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 && env.Data[0] == '{' {
		raw = env.Data
	}
	var rec models.CaseRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode case record: %w", err)
	}
	return &rec, nil
}

// errorMessage pulls a message out of the common error body shapes, falling back to status.
func errorMessage(body []byte, status string) string {
	var env struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		if env.Message != "" {
			return env.Message
		}
		if env.Error != "" {
			return env.Error
		}
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return status
	}
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

// parseRetryAfter accepts both delta-seconds and HTTP-date forms.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
