// Package triggers detects references to restricted real-world entities in
// generation inputs.
//
// The entity table is declarative YAML (see entities.yaml for the embedded
// default). Each entity has full identifiers that always trigger, a partial
// identifier, and qualifiers that reconstruct identity when they co-occur
// with the partial one. Brands are low-value terms kept for telemetry only.
//
// Matching runs on NFC text and is case- and accent-insensitive with Unicode
// word boundaries. Positions are byte offsets into the normalized text.
package triggers
