// Package stagedcontent implements the deferred-upload editing pipeline used
// by the admin content screens: images and rich-text sections are edited
// entirely client-side, all network uploads are deferred until final
// submission, and newly added, removed, and edited assets are reconciled
// against a key-addressed object store.
//
// The package exposes four cooperating pieces. Resolver turns a stored
// reference (raw key, absolute URL, or literal markup) into displayable
// content with never-fail fallback semantics. Store tracks per-form staged
// assets and the deletion ledger. Sections manages ordered rich-text blocks
// whose bodies round-trip through storage keys without duplication.
// Submitter runs the strictly ordered commit sequence and invokes the entity
// API exactly once.
//
// Gateway implementations (memory, filesystem, S3) live under subpackages,
// as do entity-store implementations (memory, Postgres) and the HTTP
// form-session surface.
package stagedcontent
