package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"inkquiry/internal/domain"
)

type calculateRequest struct {
	Image      string            `json:"image"`
	DictOfVars map[string]string `json:"dict_of_vars"`
}

type calculateResponse struct {
	Message string           `json:"message"`
	Status  string           `json:"status"`
	Data    []evaluationWire `json:"data"`
}

type evaluationWire struct {
	Expr   flexString `json:"expr"`
	Result flexString `json:"result"`
	Assign bool       `json:"assign"`
}

// flexString accepts a JSON string, number or boolean. The recognition
// service returns numeric results unquoted.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v.(type) {
	case float64, bool:
		*f = flexString(b)
		return nil
	}
	return fmt.Errorf("unexpected JSON value %s", b)
}

// Calculate posts the snapshot and the variable table to /calculate and
// returns the evaluations in response order.
func (c *Client) Calculate(ctx context.Context, snap domain.Snapshot, vars domain.Variables) ([]domain.Evaluation, error) {
	req := calculateRequest{Image: string(snap), DictOfVars: map[string]string(vars.Clone())}
	var resp calculateResponse
	if err := c.doJSON(ctx, http.MethodPost, "/calculate", req, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Evaluation, 0, len(resp.Data))
	for _, e := range resp.Data {
		out = append(out, domain.Evaluation{
			Expr:   strings.TrimSpace(string(e.Expr)),
			Result: strings.TrimSpace(string(e.Result)),
			Assign: e.Assign,
		})
	}
	return out, nil
}
