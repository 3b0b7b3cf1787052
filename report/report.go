// Package report persists the output of a reconcile batch.
package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/fluxcd/pkg/lockedfile"
	"github.com/jrsteele09/zonesync/reconcile"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// TenantData is one successful tenant.
type TenantData struct {
	ExternalCustomerID string          `json:"externalCustomerId"`
	Results            json.RawMessage `json:"results"`
}

// TenantFailure is one tenant that was skipped.
type TenantFailure struct {
	ExternalCustomerID string `json:"externalCustomerId"`
	ErrorKind          string `json:"errorKind"`
}

type Report struct {
	GeneratedAt time.Time       `json:"generatedAt"`
	Results     []TenantData    `json:"results"`
	Failures    []TenantFailure `json:"failures"`
}

// Build splits batch results into the report shape, keeping batch order.
func Build(results []reconcile.Result, at time.Time) Report {
	r := Report{
		GeneratedAt: at.UTC(),
		Results:     make([]TenantData, 0, len(results)),
		Failures:    make([]TenantFailure, 0),
	}
	for _, res := range results {
		if res.Success {
			payload := res.Payload
			if len(payload) == 0 {
				payload = json.RawMessage("null")
			}
			r.Results = append(r.Results, TenantData{ExternalCustomerID: res.TenantID, Results: payload})
			continue
		}
		r.Failures = append(r.Failures, TenantFailure{ExternalCustomerID: res.TenantID, ErrorKind: res.Kind})
	}
	return r
}

// Write stores r as indented JSON at path. Concurrent writers are serialised
// through path.lock and readers never observe a partial file.
func Write(path string, r Report) error {
	raw, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.Wrap(err, "report.Write marshal")
	}

	unlock, err := lockedfile.MutexAt(path + ".lock").Lock()
	if err != nil {
		return errors.Wrapf(err, "report.Write lock %s", path)
	}
	defer unlock()

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "report.Write create temp")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(raw, '\n')); err != nil {
		tmp.Close()
		return errors.Wrap(err, "report.Write")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "report.Write close")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "report.Write rename")
}

// Read loads a report written by Write.
func Read(path string) (Report, error) {
	var r Report
	raw, err := os.ReadFile(path)
	if err != nil {
		return r, errors.Wrapf(err, "report.Read %s", path)
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return r, errors.Wrapf(err, "report.Read decode %s", path)
	}
	return r, nil
}

// LogSummary prints one line per tenant followed by the totals.
func LogSummary(logger zerolog.Logger, r Report) {
	for _, d := range r.Results {
		logger.Info().Str("tenant_id", d.ExternalCustomerID).Int("bytes", len(d.Results)).Msg("tenant ok")
	}
	for _, f := range r.Failures {
		logger.Info().Str("tenant_id", f.ExternalCustomerID).Str("error_kind", f.ErrorKind).Msg("tenant skipped")
	}
	logger.Info().
		Int("succeeded", len(r.Results)).
		Int("failed", len(r.Failures)).
		Time("generated_at", r.GeneratedAt).
		Msg("Report summary")
}
