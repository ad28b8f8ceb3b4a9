// Package crm implements remote.Transport for a HubSpot-style CRM objects API
// (/crm/v3/objects/{type}).
//
// Full fetches page through the list endpoint with the mapped properties;
// incremental fetches use the search endpoint filtered on the last modified
// date. Property definitions back the SchemaInspector used by integrity
// checks.
package crm
