package evaluate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrTooDeep reports a result that is still a JSON string after the allowed
// number of decodes.
var ErrTooDeep = errors.New("evaluation result nested too deeply")

// Unwrap peels JSON string encoding off raw. Each layer that decodes to a JSON
// string consumes one of maxLayers; text that is not a JSON string is returned
// as is and left for the normalizer to judge.
func Unwrap(raw string, maxLayers int) (string, error) {
	text := strings.TrimSpace(raw)
	for layer := 0; ; layer++ {
		if text == "" || text == "null" {
			return "", ErrEvaluationFailed
		}
		var inner string
		if err := json.Unmarshal([]byte(text), &inner); err != nil {
			return text, nil
		}
		if layer >= maxLayers {
			return "", fmt.Errorf("%w: more than %d string layers", ErrTooDeep, maxLayers)
		}
		text = strings.TrimSpace(inner)
	}
}
