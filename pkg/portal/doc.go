// Package portal wires the per-request pipeline: identity and session
// resolution, default layout reconciliation, layout resolution, guest-page
// merging, and assembly of the display context handed to rendering.
//
// The pipeline is one mux handler, ServicePre. Each stage is a collaborator
// injected at construction; the handler owns only ordering and error
// translation.
package portal
