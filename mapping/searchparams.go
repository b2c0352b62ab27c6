package mapping

import "strings"

// SearchParameter binds a FHIR search parameter to the element it filters on
type SearchParameter struct {
	Name  string   // Parameter name as written in WHERE (e.g., "family")
	Paths []string // Path expressions evaluated by in-memory providers
	Field string   // Dotted document field used by document stores
	Type  string   // token, string, date, number, quantity, reference
}

// commonParameters apply to every resource type
var commonParameters = map[string]SearchParameter{
	"_id":          {Name: "_id", Paths: []string{"id"}, Field: "id", Type: "token"},
	"_lastUpdated": {Name: "_lastUpdated", Paths: []string{"meta.lastUpdated"}, Field: "meta.lastUpdated", Type: "date"},
	"_tag":         {Name: "_tag", Paths: []string{"meta.tag.code"}, Field: "meta.tag.code", Type: "token"},
	"_profile":     {Name: "_profile", Paths: []string{"meta.profile"}, Field: "meta.profile", Type: "reference"},
}

// SearchParameters - Per resource type parameter table
// Usage: SearchParameters["Patient"]["family"].Field returns "name.family"
var SearchParameters = map[string]map[string]SearchParameter{
	"Patient": {
		"active":     {Name: "active", Paths: []string{"active"}, Field: "active", Type: "token"},
		"family":     {Name: "family", Paths: []string{"name.family"}, Field: "name.family", Type: "string"},
		"given":      {Name: "given", Paths: []string{"name.given"}, Field: "name.given", Type: "string"},
		"name":       {Name: "name", Paths: []string{"name.family", "name.given", "name.text"}, Field: "name.family", Type: "string"},
		"birthdate":  {Name: "birthdate", Paths: []string{"birthDate"}, Field: "birthDate", Type: "date"},
		"gender":     {Name: "gender", Paths: []string{"gender"}, Field: "gender", Type: "token"},
		"identifier": {Name: "identifier", Paths: []string{"identifier.value"}, Field: "identifier.value", Type: "token"},
		"phone":      {Name: "phone", Paths: []string{"telecom.where(system = 'phone').value"}, Field: "telecom.value", Type: "token"},
		"email":      {Name: "email", Paths: []string{"telecom.where(system = 'email').value"}, Field: "telecom.value", Type: "token"},
		"address-city": {
			Name: "address-city", Paths: []string{"address.city"}, Field: "address.city", Type: "string",
		},
	},
	"Observation": {
		"code":           {Name: "code", Paths: []string{"code.coding.code"}, Field: "code.coding.code", Type: "token"},
		"status":         {Name: "status", Paths: []string{"status"}, Field: "status", Type: "token"},
		"subject":        {Name: "subject", Paths: []string{"subject.reference"}, Field: "subject.reference", Type: "reference"},
		"patient":        {Name: "patient", Paths: []string{"subject.reference"}, Field: "subject.reference", Type: "reference"},
		"date":           {Name: "date", Paths: []string{"effectiveDateTime"}, Field: "effectiveDateTime", Type: "date"},
		"value-quantity": {Name: "value-quantity", Paths: []string{"valueQuantity.value"}, Field: "valueQuantity.value", Type: "quantity"},
		"category":       {Name: "category", Paths: []string{"category.coding.code"}, Field: "category.coding.code", Type: "token"},
	},
	"Encounter": {
		"status":  {Name: "status", Paths: []string{"status"}, Field: "status", Type: "token"},
		"subject": {Name: "subject", Paths: []string{"subject.reference"}, Field: "subject.reference", Type: "reference"},
		"patient": {Name: "patient", Paths: []string{"subject.reference"}, Field: "subject.reference", Type: "reference"},
		"date":    {Name: "date", Paths: []string{"period.start"}, Field: "period.start", Type: "date"},
	},
	"Practitioner": {
		"family": {Name: "family", Paths: []string{"name.family"}, Field: "name.family", Type: "string"},
		"given":  {Name: "given", Paths: []string{"name.given"}, Field: "name.given", Type: "string"},
		"active": {Name: "active", Paths: []string{"active"}, Field: "active", Type: "token"},
	},
	"Organization": {
		"name":   {Name: "name", Paths: []string{"name"}, Field: "name", Type: "string"},
		"active": {Name: "active", Paths: []string{"active"}, Field: "active", Type: "token"},
	},
}

// LookupSearchParameter resolves a WHERE parameter for a resource type.
// Unknown names fall back to the parameter name used as a path.
func LookupSearchParameter(resourceType, name string) SearchParameter {
	if p, ok := commonParameters[name]; ok {
		return p
	}
	if params, ok := SearchParameters[resourceType]; ok {
		if p, ok := params[name]; ok {
			return p
		}
	}
	return SearchParameter{Name: name, Paths: []string{name}, Field: name, Type: "string"}
}

// SearchModifiers lists the parameter modifiers providers understand
var SearchModifiers = map[string]bool{
	"exact":    true,
	"contains": true,
	"missing":  true,
}

// SplitModifier splits "name:exact" into ("name", "exact")
func SplitModifier(name string) (string, string) {
	if i := strings.IndexByte(name, ':'); i > 0 {
		return name[:i], name[i+1:]
	}
	return name, ""
}

// IsChainedParameter checks for reverse-chained or chained parameters of a
// resource type: _has:..., subject:Patient.name, or subject.name where
// subject is a reference parameter
func IsChainedParameter(resourceType, name string) bool {
	if strings.HasPrefix(name, "_has:") {
		return true
	}
	base, modifier := SplitModifier(name)
	if modifier != "" && !SearchModifiers[modifier] {
		return true
	}
	dot := strings.IndexByte(base, '.')
	if dot <= 0 {
		return false
	}
	return LookupSearchParameter(resourceType, base[:dot]).Type == "reference"
}
