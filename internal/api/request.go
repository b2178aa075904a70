package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const maxBodyBytes = 1 << 20

// validationIssue mirrors the shape JSON-schema validators report, so the
// 400 detail reads the same for every client.
type validationIssue struct {
	InstancePath string `json:"instancePath"`
	Keyword      string `json:"keyword"`
	Message      string `json:"message"`
}

// decodeStringField reads a JSON object body and returns the string value of
// field. Anything else yields the 400 detail to report.
func decodeStringField(w http.ResponseWriter, r *http.Request, field string) (string, string, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return "", invalidBody(validationIssue{Keyword: "size", Message: err.Error()}), false
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		return "", invalidBody(validationIssue{Keyword: "type", Message: "must be object"}), false
	}
	raw, ok := obj[field]
	if !ok {
		return "", invalidBody(validationIssue{
			Keyword: "required",
			Message: fmt.Sprintf("must have required property '%s'", field),
		}), false
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil || string(raw) == "null" {
		return "", invalidBody(validationIssue{
			InstancePath: "/" + field,
			Keyword:      "type",
			Message:      "must be string",
		}), false
	}
	return value, "", true
}

func invalidBody(issues ...validationIssue) string {
	data, _ := json.Marshal(issues)
	return "invalid request body" + string(data)
}
