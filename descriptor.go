package lookupd

// Record is the dynamic representation of a lookup entity. Field sets are
// driven by the per-entity descriptor, so one store, one coordinator, and
// one read router serve every entity type.
type Record map[string]interface{}

// Reserved field names present on every record
const (
	FieldID        = "id"
	FieldIsDeleted = "isDeleted"
)

// ID returns the record identifier, or "" if unset.
func (r Record) ID() string {
	id, _ := r[FieldID].(string)
	return id
}

// IsDeleted reports the soft-delete flag.
func (r Record) IsDeleted() bool {
	deleted, _ := r[FieldIsDeleted].(bool)
	return deleted
}

// Clone returns a shallow copy. Records hold only scalar fields, so a
// shallow copy is a full snapshot.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Sanitized returns a copy with the internal soft-delete flag stripped.
func (r Record) Sanitized() Record {
	out := r.Clone()
	delete(out, FieldIsDeleted)
	return out
}

// EntityDescriptor declares the shape of one lookup entity type: its field
// sets, uniqueness key, store/index names, and sort order. The descriptor is
// the only per-entity configuration in the system.
type EntityDescriptor struct {
	Resource  string            // resource name used in event payloads, e.g. "country"
	Table     string            // primary store table, e.g. "countries"
	Index     string            // search index name
	Required  []string          // business fields that must be present on create/update
	Optional  []string          // business fields that may be present
	UniqueKey []string          // fields forming the uniqueness constraint (ANDed)
	SortField string            // stable list ordering key
	Defaults  map[string]string // values applied to omitted optional fields on create
}

// BusinessFields returns required plus optional field names, in declaration order.
func (d EntityDescriptor) BusinessFields() []string {
	fields := make([]string, 0, len(d.Required)+len(d.Optional))
	fields = append(fields, d.Required...)
	fields = append(fields, d.Optional...)
	return fields
}

// HasField reports whether name is a declared business field.
func (d EntityDescriptor) HasField(name string) bool {
	for _, f := range d.BusinessFields() {
		if f == name {
			return true
		}
	}
	return false
}

// Built-in entity types.
var (
	CountryDescriptor = EntityDescriptor{
		Resource:  "country",
		Table:     "countries",
		Index:     "countries",
		Required:  []string{"name"},
		Optional:  []string{"countryCode", "countryFlag"},
		UniqueKey: []string{"name"},
		SortField: "name",
	}

	DeviceDescriptor = EntityDescriptor{
		Resource:  "device",
		Table:     "devices",
		Index:     "devices",
		Required:  []string{"type", "manufacturer", "model", "operatingSystem"},
		Optional:  []string{"operatingSystemVersion"},
		UniqueKey: []string{"type", "manufacturer", "model", "operatingSystem", "operatingSystemVersion"},
		SortField: "type",
		Defaults:  map[string]string{"operatingSystemVersion": "ANY"},
	}

	EducationalInstitutionDescriptor = EntityDescriptor{
		Resource:  "educationalInstitution",
		Table:     "educationalInstitutions",
		Index:     "educational_institutions",
		Required:  []string{"name"},
		UniqueKey: []string{"name"},
		SortField: "name",
	}
)

// Descriptors lists every built-in entity type, in the order admin
// tooling (table creation, bulk load, reindex) processes them.
func Descriptors() []EntityDescriptor {
	return []EntityDescriptor{
		CountryDescriptor,
		DeviceDescriptor,
		EducationalInstitutionDescriptor,
	}
}
