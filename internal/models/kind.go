// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

// KindDescriptor declares a content kind that carries review metadata.
// Table is the kind's own storage holding the review columns keyed by page_id.
type KindDescriptor struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Table string `json:"-"`
}

// Built-in page kinds.
var (
	PolicyPageKind = KindDescriptor{
		Name:  "policy_page",
		Label: "Policy page",
		Table: "policy_pages",
	}
	GuidancePageKind = KindDescriptor{
		Name:  "guidance_page",
		Label: "Guidance page",
		Table: "guidance_pages",
	}
)

// SimplePageKind is a page kind without review metadata.
const SimplePageKind = "simple_page"

// BuiltinKinds lists the reviewable kinds shipped with the schema.
var BuiltinKinds = []KindDescriptor{PolicyPageKind, GuidancePageKind}

// LookupBuiltinKind finds a built-in reviewable kind by name.
func LookupBuiltinKind(name string) (KindDescriptor, bool) {
	for _, k := range BuiltinKinds {
		if k.Name == name {
			return k, true
		}
	}
	return KindDescriptor{}, false
}
