package dictionary

import "fmt"

// scopeKey identifies an attribute scope: the standard space (vendor 0) or
// a single vendor's VSA space.
type scopeKey struct {
	vendor uint32
	code   uint8
}

// Dictionary is the immutable-after-load registry mapping
// (vendor, code) -> Attribute and (vendor, name) -> Attribute, plus the
// vendor table itself. It is safe for concurrent read access once
// ParseFile/ParseString stop being called — exactly like FreeRADIUS's own
// dictionary, which is loaded once at startup and shared thereafter.
type extKey struct {
	parent  uint8
	subType uint8
}

type Dictionary struct {
	byCode map[scopeKey]*Attribute
	byName map[string]*Attribute // "name" for standard scope, "vendor:name" for VSA scope
	byExt  map[extKey]*Attribute

	vendorsByID   map[uint32]*Vendor
	vendorsByName map[string]*Vendor

	// Lenient, when true, makes the packet codec accept attributes whose
	// wire length disagrees with the dictionary-declared type width
	// instead of rejecting them with a DecodeError. Default false: strict
	// rejection.
	Lenient bool
}

// New returns an empty dictionary with no attributes or vendors defined.
func New() *Dictionary {
	return &Dictionary{
		byCode:        make(map[scopeKey]*Attribute),
		byName:        make(map[string]*Attribute),
		byExt:         make(map[extKey]*Attribute),
		vendorsByID:   make(map[uint32]*Vendor),
		vendorsByName: make(map[string]*Vendor),
	}
}

func nameKey(vendor uint32, vendorName, name string) string {
	if vendor == 0 {
		return name
	}
	return vendorName + ":" + name
}

// addAttribute registers attr in the dictionary, enforcing name
// uniqueness and code uniqueness within a vendor scope.
func (d *Dictionary) addAttribute(vendorName string, attr *Attribute) error {
	ck := scopeKey{vendor: attr.Vendor, code: attr.Code}
	nk := nameKey(attr.Vendor, vendorName, attr.Name)

	if _, exists := d.byName[nk]; exists {
		return fmt.Errorf("duplicate attribute name %q", attr.Name)
	}
	if attr.IsExtended() {
		if _, exists := d.byExt[extKey{parent: attr.Code, subType: attr.ExtendedType}]; exists {
			return fmt.Errorf("duplicate extended attribute code %d.%d", attr.Code, attr.ExtendedType)
		}
	} else if _, exists := d.byCode[ck]; exists {
		return fmt.Errorf("duplicate attribute code %d in vendor %d scope", attr.Code, attr.Vendor)
	}

	if attr.Values != nil {
		attr.valueNames = make(map[uint32]string, len(attr.Values))
		for name, val := range attr.Values {
			attr.valueNames[val] = name
		}
	}

	d.byName[nk] = attr
	if attr.IsExtended() {
		d.byExt[extKey{parent: attr.Code, subType: attr.ExtendedType}] = attr
	} else {
		d.byCode[ck] = attr
	}
	return nil
}

// AddValue attaches a VALUE enumeration member to an already-defined
// attribute, looked up by name within vendorName's scope (vendorName=""
// for the standard space).
func (d *Dictionary) AddValue(vendorName, attrName, valueName string, value uint32) error {
	attr, ok := d.lookupByName(vendorName, attrName)
	if !ok {
		return fmt.Errorf("VALUE references unknown attribute %q", attrName)
	}
	if attr.Values == nil {
		attr.Values = make(map[string]uint32)
		attr.valueNames = make(map[uint32]string)
	}
	if _, exists := attr.Values[valueName]; exists {
		return fmt.Errorf("duplicate VALUE name %q for attribute %q", valueName, attrName)
	}
	attr.Values[valueName] = value
	attr.valueNames[value] = valueName
	return nil
}

// AddVendor registers a vendor. Returns an error if the vendor ID or name
// is already known.
func (d *Dictionary) AddVendor(v *Vendor) error {
	if _, exists := d.vendorsByID[v.ID]; exists {
		return fmt.Errorf("duplicate vendor id %d", v.ID)
	}
	if _, exists := d.vendorsByName[v.Name]; exists {
		return fmt.Errorf("duplicate vendor name %q", v.Name)
	}
	if v.TypeWidth == 0 && v.LengthWidth == 0 {
		v.TypeWidth, v.LengthWidth = defaultVendorFormat()
	}
	d.vendorsByID[v.ID] = v
	d.vendorsByName[v.Name] = v
	return nil
}

func (d *Dictionary) lookupByName(vendorName, name string) (*Attribute, bool) {
	var vendorID uint32
	if vendorName != "" {
		v, ok := d.vendorsByName[vendorName]
		if !ok {
			return nil, false
		}
		vendorID = v.ID
	}
	attr, ok := d.byName[nameKey(vendorID, vendorName, name)]
	return attr, ok
}

// LookupByName resolves a symbolic attribute name in the standard
// (non-vendor) scope.
func (d *Dictionary) LookupByName(name string) (*Attribute, bool) {
	attr, ok := d.byName[name]
	return attr, ok
}

// LookupVendorAttributeByName resolves a symbolic attribute name scoped to
// a named vendor.
func (d *Dictionary) LookupVendorAttributeByName(vendorName, name string) (*Attribute, bool) {
	return d.lookupByName(vendorName, name)
}

// LookupByCode resolves a standard-scope attribute by its wire code.
func (d *Dictionary) LookupByCode(code uint8) (*Attribute, bool) {
	attr, ok := d.byCode[scopeKey{vendor: 0, code: code}]
	return attr, ok
}

// LookupVendorAttributeByCode resolves a VSA sub-attribute by vendor ID and
// sub-attribute code.
func (d *Dictionary) LookupVendorAttributeByCode(vendorID uint32, code uint8) (*Attribute, bool) {
	attr, ok := d.byCode[scopeKey{vendor: vendorID, code: code}]
	return attr, ok
}

// LookupExtended resolves an RFC 6929 extended sub-attribute: parentCode is
// one of 241..246, subType is the byte carried in the value.
func (d *Dictionary) LookupExtended(parentCode, subType uint8) (*Attribute, bool) {
	attr, ok := d.byExt[extKey{parent: parentCode, subType: subType}]
	return attr, ok
}

// LookupValue resolves a VALUE name to its integer for attr.
func (d *Dictionary) LookupValue(attr *Attribute, name string) (uint32, bool) {
	if attr == nil || attr.Values == nil {
		return 0, false
	}
	v, ok := attr.Values[name]
	return v, ok
}

// LookupVendorByID resolves a vendor by its IANA SMI code.
func (d *Dictionary) LookupVendorByID(id uint32) (*Vendor, bool) {
	v, ok := d.vendorsByID[id]
	return v, ok
}

// LookupVendorByName resolves a vendor by name.
func (d *Dictionary) LookupVendorByName(name string) (*Vendor, bool) {
	v, ok := d.vendorsByName[name]
	return v, ok
}

// Vendors returns every registered vendor, in no particular order.
func (d *Dictionary) Vendors() []*Vendor {
	out := make([]*Vendor, 0, len(d.vendorsByID))
	for _, v := range d.vendorsByID {
		out = append(out, v)
	}
	return out
}
