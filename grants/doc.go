// Package rewards orchestrates server-side verification callbacks:
// verifier selection, idempotent-replay short circuit, business-rule
// gating, and the additive entitlement-window update.
package grants
