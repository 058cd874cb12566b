package dictionary

import "gopkg.in/yaml.v3"

// yamlAttribute and yamlVendor give every wire-facing struct a yaml tag
// set, so a dictionary can be shipped as a single editable YAML document
// alongside (or instead of) FreeRADIUS text dictionaries — handy for
// embedding a site's vendor space in a config management pipeline that
// already speaks YAML.
type yamlAttribute struct {
	Name         string            `yaml:"name"`
	Code         uint8             `yaml:"code"`
	ExtendedType uint8             `yaml:"extended_type,omitempty"`
	Type         DataType          `yaml:"type"`
	Vendor       string            `yaml:"vendor,omitempty"`
	HasTag       bool              `yaml:"has_tag,omitempty"`
	Encrypt      Encryption        `yaml:"encrypt,omitempty"`
	Values       map[string]uint32 `yaml:"values,omitempty"`
}

type yamlVendor struct {
	Name        string `yaml:"name"`
	ID          uint32 `yaml:"id"`
	TypeWidth   int    `yaml:"type_width,omitempty"`
	LengthWidth int    `yaml:"length_width,omitempty"`
}

type yamlDictionary struct {
	Vendors    []yamlVendor    `yaml:"vendors,omitempty"`
	Attributes []yamlAttribute `yaml:"attributes"`
}

// ExportYAML serializes every vendor and attribute currently registered in
// d into a single YAML document.
func (d *Dictionary) ExportYAML() ([]byte, error) {
	doc := yamlDictionary{}
	for _, v := range d.vendorsByID {
		doc.Vendors = append(doc.Vendors, yamlVendor{
			Name:        v.Name,
			ID:          v.ID,
			TypeWidth:   v.TypeWidth,
			LengthWidth: v.LengthWidth,
		})
	}
	for _, attr := range d.byCode {
		doc.Attributes = append(doc.Attributes, attrToYAML(d, attr))
	}
	for _, attr := range d.byExt {
		doc.Attributes = append(doc.Attributes, attrToYAML(d, attr))
	}
	return yaml.Marshal(doc)
}

func attrToYAML(d *Dictionary, attr *Attribute) yamlAttribute {
	y := yamlAttribute{
		Name:         attr.Name,
		Code:         attr.Code,
		ExtendedType: attr.ExtendedType,
		Type:         attr.Type,
		HasTag:       attr.HasTag,
		Encrypt:      attr.Encrypt,
		Values:       attr.Values,
	}
	if attr.Vendor != 0 {
		if v, ok := d.vendorsByID[attr.Vendor]; ok {
			y.Vendor = v.Name
		}
	}
	return y
}

// ImportYAML parses a YAML document produced by ExportYAML (or written by
// hand in the same shape) and merges its vendors and attributes into d,
// subject to the same uniqueness rules ParseFile enforces.
func (d *Dictionary) ImportYAML(data []byte) error {
	var doc yamlDictionary
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}

	for _, yv := range doc.Vendors {
		v := &Vendor{Name: yv.Name, ID: yv.ID, TypeWidth: yv.TypeWidth, LengthWidth: yv.LengthWidth}
		if err := d.AddVendor(v); err != nil {
			return err
		}
	}

	for _, ya := range doc.Attributes {
		attr := &Attribute{
			Name:         ya.Name,
			Code:         ya.Code,
			ExtendedType: ya.ExtendedType,
			Type:         ya.Type,
			HasTag:       ya.HasTag,
			Encrypt:      ya.Encrypt,
			Values:       ya.Values,
		}
		if ya.Vendor != "" {
			v, ok := d.LookupVendorByName(ya.Vendor)
			if !ok {
				return &CodecError{Type: attr.Type, Msg: "unknown vendor " + ya.Vendor + " referenced by attribute " + ya.Name}
			}
			attr.Vendor = v.ID
		}
		if err := d.addAttribute(ya.Vendor, attr); err != nil {
			return err
		}
	}
	return nil
}
