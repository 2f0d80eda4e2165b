package types

// Version is the canonical project version.
// The CLI and the stack artifact format share this version; bump the
// stack FormatVersion separately only on on-disk layout changes.
const Version = "0.2.0"
