package local

import (
	"context"

	"github.com/agentstation/sissync/pkg/errors"
	"github.com/agentstation/sissync/pkg/logging"
	"github.com/agentstation/sissync/pkg/records"
	"github.com/agentstation/sissync/pkg/translate"
)

// Loader builds the desired mapping of one entity from its export.
type Loader struct {
	Source     Source
	Translator *translate.Translator
	Key        records.KeyFunc
}

// Stats counts what a load did.
type Stats struct {
	Records    int
	Loaded     int
	Skipped    int
	Duplicates int
}

// Load reads every export record in order, splits and keys it, and inserts
// the results. Invalid sub-records are logged and dropped one at a time;
// any other error aborts the load. On duplicate keys the last record wins.
func (l *Loader) Load(ctx context.Context) (records.Mapping, Stats, error) {
	var stats Stats

	raw, err := l.Source.Records()
	if err != nil {
		return nil, stats, err
	}
	stats.Records = len(raw)

	logger := logging.FromContext(ctx)
	mapping := make(records.Mapping, len(raw))

	for i, rec := range raw {
		for j, result := range l.Translator.Split(ctx, rec) {
			if err := ctx.Err(); err != nil {
				return nil, stats, err
			}

			translated, err := result.Record, result.Err
			var key records.Key
			if err == nil {
				key, err = l.Key(translated)
			}
			if err != nil {
				if !errors.IsInvalidRecord(err) {
					return nil, stats, err
				}
				stats.Skipped++
				logger.Error().Err(err).
					Int("record", i).
					Int("subrecord", j).
					Msg("Skipping invalid local record")
				continue
			}

			if _, exists := mapping[key]; exists {
				stats.Duplicates++
				logger.Warn().
					Str("key", key.String()).
					Int("record", i).
					Int("subrecord", j).
					Msg("Duplicate local key, keeping the later record")
			}
			mapping[key] = translated
		}
	}

	stats.Loaded = len(mapping)
	return mapping, stats, nil
}
