package sidecar

import "github.com/pkg/errors"

// CurrentSchemaName and CurrentSchemaVersion are the defaults a Store is
// constructed with unless overridden by configuration (QC_SCHEMA_NAME /
// QC_SCHEMA_VERSION, spec.md §6).
const (
	CurrentSchemaName    = "qc-sidecar"
	CurrentSchemaVersion = "1.1.0"

	// legacySchemaVersion is the default coerced onto a sidecar whose
	// schema_name/schema_version are missing or null, per spec.md §4.4.1.
	legacySchemaVersion = "1.0.0"
)

// ErrUnknownSchema indicates that a sidecar declares a schema_version
// newer than this build understands. Per spec.md §4.4.1 and §7, such a
// sidecar must be treated as opaque and left untouched rather than
// overwritten.
var ErrUnknownSchema = errors.New("sidecar schema version is newer than this build supports")

// schemaOrder lists every schema version this build has ever produced, in
// ascending chronological order. It's used to distinguish "a version we
// have a migration for" from "a version from the future".
var schemaOrder = []string{legacySchemaVersion, CurrentSchemaVersion}

// migrations maps a schema_version to the function that upgrades a
// payload written at that version to the next one in schemaOrder.
var migrations = map[string]func(map[string]any) map[string]any{
	legacySchemaVersion: migrateFrom1_0_0,
}

// migrate applies the migration chain to raw until its schema_version
// equals target, coercing a missing/null schema_name or schema_version
// to their legacy defaults first (spec.md §4.4.1).
func migrate(raw map[string]any, target string) (map[string]any, error) {
	if name, ok := raw["schema_name"].(string); !ok || name == "" {
		raw["schema_name"] = CurrentSchemaName
	}
	if version, ok := raw["schema_version"].(string); !ok || version == "" {
		raw["schema_version"] = legacySchemaVersion
	}

	for {
		version, _ := raw["schema_version"].(string)
		if version == target {
			return raw, nil
		}

		step, ok := migrations[version]
		if !ok {
			if schemaIndexOf(version) > schemaIndexOf(target) {
				return nil, ErrUnknownSchema
			}
			return nil, errors.Errorf("no migration path from schema version %q to %q", version, target)
		}
		raw = step(raw)
	}
}

// schemaIndexOf returns version's position in schemaOrder, or len(schemaOrder)
// if it is not recognized at all (treated as "from the future").
func schemaIndexOf(version string) int {
	for i, v := range schemaOrder {
		if v == version {
			return i
		}
	}
	return len(schemaOrder)
}

// migrateFrom1_0_0 upgrades a 1.0.0 payload to 1.1.0. Schema 1.0.0 stored
// the tracker outcome as two flat fields ("tracker_http_code",
// "tracker_status_tag") instead of the nested "tracker_status" object,
// and its sequence summaries predate "range_count". The flat tracker
// fields are folded into the nested object; range_count is reconstructed
// on a best-effort basis (exact when holes is zero, a conservative
// estimate otherwise, since the original frame list isn't available at
// migration time).
func migrateFrom1_0_0(raw map[string]any) map[string]any {
	if code, ok := raw["tracker_http_code"]; ok {
		status, _ := raw["tracker_status_tag"].(string)
		raw["tracker_status"] = map[string]any{
			"http_code": code,
			"status":    status,
		}
		delete(raw, "tracker_http_code")
		delete(raw, "tracker_status_tag")
	}

	if seq, ok := raw["sequence"].(map[string]any); ok {
		if _, hasRangeCount := seq["range_count"]; !hasRangeCount {
			if holes, ok := numericValue(seq["holes"]); ok {
				if holes == 0 {
					seq["range_count"] = 1
				} else {
					seq["range_count"] = 2
				}
			}
		}
	}

	raw["schema_version"] = CurrentSchemaVersion
	return raw
}

// numericValue extracts a float64 from a decoded JSON number, which is
// how encoding/json represents untyped numeric values.
func numericValue(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}
