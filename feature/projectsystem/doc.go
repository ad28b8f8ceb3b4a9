// Package projectsystem implements remote.Transport for a Wrike-style project
// management API.
//
// Companies, contacts and deals are tasks kept in one folder per entity type.
// Task attributes (title, description, status, importance) and custom fields
// (addressed by their id) are flattened into one field map per record, which
// the mapper then translates into canonical fields.
//
// # Usage
//
//	t := projectsystem.New(cfg.Project)
//	client := remote.NewClient(t, cfg.Project.Limits, logger)
package projectsystem
