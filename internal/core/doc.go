// Package core runs the CSV codec behind the HTTP layer.
//
// [Service] is the single entry point. It applies the configured dialect,
// bounds concurrent work with a [Limiter], memoizes parse results in a
// [Cache] and, when a database is configured, stores datasets through a
// [DatasetStore].
//
// # Parsing
//
// [Service.Parse] validates the dialect, consults the cache, then parses
// under the limiter:
//
//	t, err := svc.Parse(ctx, text, svc.Dialect())
//	if errors.Is(err, csv.ErrMalformedRow) {
//	    // ragged input
//	}
//
// Cached tables are cloned on the way in and out, so callers may modify
// what they receive.
//
// # Datasets
//
// [Service.SaveDataset] parses the input and stores its canonical text with
// the dialect. Loading re-parses that text. Without a store every dataset
// operation fails with [ErrStoreDisabled]. [Service.StartRetentionScheduler]
// purges old datasets in the background.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each category has a code for support reference:
//
//   - CSV001-CSV005: Codec errors (ragged rows, bad fields, bad dialect)
//   - INP001-INP003: Input errors (size, body format, dataset id)
//   - SRV001-SRV003: Server errors (busy, timeout, rate limited)
//   - DS001-DS002: Dataset errors (not found, storage disabled)
package core
