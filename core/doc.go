// Package core contains canonical reward-crediting domain contracts,
// entities, and the error taxonomy. Verifiers, stores, and transport
// adapters must depend on this package; core must not depend on
// network-specific or storage-specific adapters.
package core
