package remote

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentstation/sissync/pkg/logging"
	"github.com/agentstation/sissync/pkg/records"
)

// DryRunScheme prefixes the URLs handed out for records that were never created.
const DryRunScheme = "dry-run://"

// dryRun passes reads through and answers mutations without sending them.
type dryRun struct {
	Accessor
	keyFn records.KeyFunc
	seq   int
}

// DryRun wraps an accessor so that mutations are only logged. Creates
// return the record with a synthetic dry-run URL so references to it still
// resolve; keyFn names the URL after the record key when possible.
func DryRun(a Accessor, keyFn records.KeyFunc) Accessor {
	return &dryRun{Accessor: a, keyFn: keyFn}
}

// IsDryRunURL reports whether url was handed out by a dry-run create.
func IsDryRunURL(url string) bool {
	return strings.HasPrefix(url, DryRunScheme)
}

func (d *dryRun) Create(ctx context.Context, rec records.Record) (records.Record, error) {
	d.seq++
	id := fmt.Sprintf("%d", d.seq)
	if d.keyFn != nil {
		if key, err := d.keyFn(rec); err == nil {
			id = key.String()
		}
	}

	created := rec.Clone()
	created[records.URLField] = DryRunScheme + d.Name() + "/" + id
	logging.FromContext(ctx).Info().
		Str("collection", d.Name()).
		Str("url", created.URL()).
		Msg("Dry run: would create record")
	return created, nil
}

func (d *dryRun) Update(ctx context.Context, url string, rec records.Record) (records.Record, error) {
	logging.FromContext(ctx).Info().
		Str("collection", d.Name()).
		Str("url", url).
		Msg("Dry run: would update record")
	updated := rec.Clone()
	updated[records.URLField] = url
	return updated, nil
}

func (d *dryRun) Delete(ctx context.Context, url string) error {
	logging.FromContext(ctx).Info().
		Str("collection", d.Name()).
		Str("url", url).
		Msg("Dry run: would delete record")
	return nil
}
