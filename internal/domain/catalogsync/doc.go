// Package catalogsync contains the domain model for keeping two product
// catalogs (Store A and Store B) mirror-consistent.
//
// Key concepts:
//
//   - Store: a closed two-value enumeration identifying each catalog platform.
//     Every sync path is symmetric; Store.Other gives the opposite side.
//   - SyncRecord: the cross-store identity of one product. It holds the
//     external product IDs on both stores, the mirrored catalog fields and
//     the per-variant VariantMapping list keyed by SKU.
//   - SyncLogEntry: append-only audit record written once per sync operation.
//   - Decide: the conflict guard that turns an inbound change into
//     Apply, Skip or TreatAsCreate, preventing echo loops between stores.
//
// Ports & Adapters:
//
// CatalogPlatform is the port for a remote catalog platform. Adapters live in
// infrastructure/shopify. SyncRecordRepository, SyncLogRepository and
// ConfigEntryRepository are persistence ports implemented in
// infrastructure/persistence.
package catalogsync
