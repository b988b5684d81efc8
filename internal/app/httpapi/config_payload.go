package httpapi

import (
	"encoding/json"

	"github.com/mafzaal/letstalk-index/internal/app/config"
)

// configPayload is a partial JSON object overriding fields of the server's
// default configuration. Unmarshal is done field-by-field onto a copy of the
// base config (via marshal-merge-unmarshal) so omitted fields keep the
// default's value rather than zeroing out on the patch.
type configPayload map[string]json.RawMessage

func (p configPayload) apply(base config.Config) (config.Config, error) {
	if len(p) == 0 {
		return base, nil
	}
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return config.Config{}, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(baseJSON, &merged); err != nil {
		return config.Config{}, err
	}
	for k, v := range p {
		merged[k] = v
	}
	mergedJSON, err := json.Marshal(merged)
	if err != nil {
		return config.Config{}, err
	}
	var out config.Config
	if err := json.Unmarshal(mergedJSON, &out); err != nil {
		return config.Config{}, err
	}
	return out, out.Validate()
}
