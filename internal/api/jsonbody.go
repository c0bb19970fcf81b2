package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/westonopentrain/capsule-match/internal/apperr"
)

// curly/smart quote replacements, per §4.10: callers occasionally paste
// job descriptions authored in word processors, which substitute ASCII
// quotes with their typographic equivalents and break strict JSON.
var quoteReplacer = strings.NewReplacer(
	"‘", "'", "’", "'", "‚", "'", "‛", "'",
	"“", `"`, "”", `"`, "„", `"`, "‟", `"`,
	"′", "'", "″", `"`, "‴", `"`, "‵", "'", "‶", `"`,
)

// decodeBody implements the lenient body parse of §4.10: strict parse
// first, then a repair pass that normalizes curly/smart quotes, then
// VALIDATION_ERROR if both fail.
func decodeBody(r *http.Request, v interface{}) error {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return apperr.New(apperr.CodeValidation, "could not read request body")
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return apperr.New(apperr.CodeValidation, "request body is required")
	}

	if err := json.Unmarshal(raw, v); err == nil {
		return nil
	}

	repaired := quoteReplacer.Replace(string(raw))
	if err := json.Unmarshal([]byte(repaired), v); err == nil {
		return nil
	}

	return apperr.New(apperr.CodeValidation, "request body is not valid JSON")
}
