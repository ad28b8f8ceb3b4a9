// Package models holds the domain vocabulary shared by every sync component:
// systems, entity types, raw and canonical records, and issue kinds.
package models
