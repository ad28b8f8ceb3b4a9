// Package mapper converts records between each remote system's representation
// and the canonical form used for comparison.
//
// Mapping is driven entirely by a static YAML file:
//
//	default_region: US
//	entities:
//	  company:
//	    natural_key: name
//	    create_missing_in_crm: true
//	    fields:
//	      - name: name
//	        type: string
//	        required: true
//	        project: { field: title, prefix: "AdminCard_" }
//	        crm: { field: name }
//	      - name: tier
//	        type: enum
//	        project: { field: IEAAAAAA, values: { "Tier 1": tier_1 } }
//	        crm: { field: hs_priority, values: { HIGH: tier_1 } }
//
// # Coercion
//
// Every field declares a type (string, email, int, decimal, bool, date, enum,
// phone). Values are normalized deterministically so the same business value
// yields the same fingerprint regardless of which system it came from.
//
// # Fingerprints
//
// Fingerprint hashes the sorted canonical fields. The reconciliation engine
// compares fingerprints against the last synced ones to detect change without
// relying on remote timestamps.
package mapper
