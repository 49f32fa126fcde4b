// internal/crm/objects.go
package crm

import (
	"regexp"

	"recruitsync/internal/common/errors"
)

// CRM object API names used by the sync engine.
const (
	ObjectContact              = "Contact"
	ObjectOpportunity          = "Opportunity"
	ObjectCandidateOpportunity = "Candidate_Opportunity__c"
)

// objectSpec binds an object to its collection path and the external-id
// field used for upsert matching. An explicit table instead of dispatching
// on entity types keeps unknown objects a loud configuration error.
type objectSpec struct {
	collection      string
	externalIDField string
}

var objectRegistry = map[string]objectSpec{
	ObjectContact:              {collection: "sobjects/Contact", externalIDField: "Candidate_Number__c"},
	ObjectOpportunity:          {collection: "sobjects/Opportunity", externalIDField: "Id"},
	ObjectCandidateOpportunity: {collection: "sobjects/Candidate_Opportunity__c", externalIDField: "External_Key__c"},
}

// CollectionPathFor returns the data API collection path for an object type.
func CollectionPathFor(object string) (string, error) {
	spec, ok := objectRegistry[object]
	if !ok {
		return "", errors.NewUnknownObjectError(object)
	}
	return spec.collection, nil
}

// ExternalIDFieldFor returns the default upsert match field for an object type.
func ExternalIDFieldFor(object string) (string, error) {
	spec, ok := objectRegistry[object]
	if !ok {
		return "", errors.NewUnknownObjectError(object)
	}
	return spec.externalIDField, nil
}

// recordURLPattern matches the fixed record link shape the CRM embeds in
// related fields: object type followed by a 15-18 character identifier.
var recordURLPattern = regexp.MustCompile(`^https://[\w.-]+/lightning/r/(\w+)/([a-zA-Z0-9]{15,18})/view`)

// ParseRecordURL extracts the object type and record id from a record link.
// A URL that does not match the expected shape yields ok=false, not an
// error: unrecognized links mean "not found" to callers.
func ParseRecordURL(raw string) (objectType, id string, ok bool) {
	m := recordURLPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}
