package translate

import (
	"context"

	"github.com/agentstation/sissync/pkg/records"
)

// PrefixSplitter builds one record per field prefix from a single local
// record, e.g. the two parents ("Pa" and "Pb") of a family row.
//
// Mappings whose source is listed in Shared are read as-is; every other
// mapping source is read with the prefix prepended. A prefix with no
// populated fields is suppressed. When no prefix yields a record, a minimal
// record for the first prefix is emitted from the shared fields alone.
type PrefixSplitter struct {
	Prefixes []string
	Shared   []string
	// PrefixField is the target field that receives the prefix.
	PrefixField string
}

// Split implements Splitter.
func (s *PrefixSplitter) Split(ctx context.Context, t *Translator, local records.Record) []SplitResult {
	var results []SplitResult

	for _, prefix := range s.Prefixes {
		sub, populated := s.extract(t, local, prefix)
		if populated == 0 {
			continue
		}
		rec, err := t.build(ctx, sub, buildOptions{
			skipAbsent: true,
			extra:      records.Record{s.PrefixField: prefix},
		})
		results = append(results, SplitResult{Record: rec, Err: err})
	}

	if len(results) == 0 && len(s.Prefixes) > 0 {
		sub, _ := s.extract(t, local, "")
		rec, err := t.build(ctx, sub, buildOptions{
			skipAbsent:   true,
			skipRequired: true,
			extra:        records.Record{s.PrefixField: s.Prefixes[0]},
		})
		results = append(results, SplitResult{Record: rec, Err: err})
	}

	return results
}

// extract copies the shared fields and the populated fields under prefix into
// an unprefixed local record. An empty prefix copies shared fields only.
func (s *PrefixSplitter) extract(t *Translator, local records.Record, prefix string) (records.Record, int) {
	sub := make(records.Record, len(t.FieldMap))
	populated := 0
	for _, m := range t.FieldMap {
		if s.isShared(m.Source) {
			if v, ok := local[m.Source]; ok {
				sub[m.Source] = v
			}
			continue
		}
		if prefix == "" {
			continue
		}
		v, ok := local[prefix+m.Source]
		if !ok || isEmpty(normalize(v)) {
			continue
		}
		sub[m.Source] = v
		populated++
	}
	return sub, populated
}

func (s *PrefixSplitter) isShared(source string) bool {
	for _, f := range s.Shared {
		if f == source {
			return true
		}
	}
	return false
}
