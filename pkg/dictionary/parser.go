package dictionary

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

// loader abstracts the filesystem a dictionary is parsed from, so the same
// grammar walker serves both os.DirFS (ParseFile) and an embed.FS (the
// built-in default dictionary, see default.go).
type loader interface {
	read(name string) ([]byte, error)
	resolve(currentFile, include string) string
}

type osLoader struct{}

func (osLoader) read(name string) ([]byte, error) { return os.ReadFile(name) }
func (osLoader) resolve(currentFile, include string) string {
	if filepath.IsAbs(include) {
		return include
	}
	return filepath.Join(filepath.Dir(currentFile), include)
}

type fsLoader struct{ fsys fs.FS }

func (l fsLoader) read(name string) ([]byte, error) { return fs.ReadFile(l.fsys, name) }
func (l fsLoader) resolve(currentFile, include string) string {
	return path.Join(path.Dir(currentFile), include)
}

// parseState threads the include stack and the BEGIN-VENDOR/END-VENDOR
// scope stack through recursive $INCLUDE processing.
type parseState struct {
	d             *Dictionary
	ld            loader
	includeStack  map[string]bool
	vendorScope   []string // stack of vendor names; empty means standard scope
}

// ParseFile parses a FreeRADIUS-syntax dictionary file (and everything it
// $INCLUDEs, resolved relative to each including file) into d.
func (d *Dictionary) ParseFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	st := &parseState{d: d, ld: osLoader{}, includeStack: map[string]bool{}}
	return st.parseFile(abs)
}

// ParseFS parses a dictionary file named name out of fsys, following
// $INCLUDE directives within fsys using slash-separated paths.
func (d *Dictionary) ParseFS(fsys fs.FS, name string) error {
	st := &parseState{d: d, ld: fsLoader{fsys: fsys}, includeStack: map[string]bool{}}
	return st.parseFile(name)
}

// ParseString parses dictionary text that has no includes (or whose
// includes are meaningless, e.g. inline test fixtures). name is used only
// for error messages.
func (d *Dictionary) ParseString(text, name string) error {
	st := &parseState{d: d, includeStack: map[string]bool{}}
	return st.parseLines(strings.NewReader(text), name)
}

func (st *parseState) parseFile(name string) error {
	if st.includeStack[name] {
		return newParseError(name, 0, ErrIncludeCycle, fmt.Sprintf("include cycle detected at %q", name))
	}
	st.includeStack[name] = true
	defer delete(st.includeStack, name)

	data, err := st.ld.read(name)
	if err != nil {
		return newParseError(name, 0, ErrIncludeFailed, err.Error())
	}
	return st.parseLines(bytes.NewReader(data), name)
}

func (st *parseState) parseLines(r io.Reader, name string) error {
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		if err := st.parseLine(name, line, raw); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (st *parseState) parseLine(file string, line int, text string) error {
	fields := strings.Fields(text)
	directive := fields[0]

	switch strings.ToUpper(directive) {
	case "$INCLUDE":
		if len(fields) != 2 {
			return newParseError(file, line, ErrBadArguments, "$INCLUDE requires exactly one path argument")
		}
		if st.ld == nil {
			return newParseError(file, line, ErrIncludeFailed, "$INCLUDE used with ParseString, which has no base path")
		}
		target := st.ld.resolve(file, fields[1])
		return st.parseFile(target)

	case "VENDOR":
		return st.parseVendor(file, line, fields)

	case "BEGIN-VENDOR":
		if len(fields) != 2 {
			return newParseError(file, line, ErrBadArguments, "BEGIN-VENDOR requires a vendor name")
		}
		if _, ok := st.d.LookupVendorByName(fields[1]); !ok {
			return newParseError(file, line, ErrUnknownVendor, fmt.Sprintf("BEGIN-VENDOR of undefined vendor %q", fields[1]))
		}
		st.vendorScope = append(st.vendorScope, fields[1])
		return nil

	case "END-VENDOR":
		if len(fields) != 2 {
			return newParseError(file, line, ErrBadArguments, "END-VENDOR requires a vendor name")
		}
		if len(st.vendorScope) == 0 {
			return newParseError(file, line, ErrVendorMismatch, "END-VENDOR with no matching BEGIN-VENDOR")
		}
		top := st.vendorScope[len(st.vendorScope)-1]
		if top != fields[1] {
			return newParseError(file, line, ErrVendorMismatch, fmt.Sprintf("END-VENDOR %q does not match open BEGIN-VENDOR %q", fields[1], top))
		}
		st.vendorScope = st.vendorScope[:len(st.vendorScope)-1]
		return nil

	case "ATTRIBUTE":
		return st.parseAttribute(file, line, fields)

	case "VALUE":
		return st.parseValue(file, line, fields)

	default:
		return newParseError(file, line, ErrUnknownDirective, fmt.Sprintf("unrecognized directive %q", directive))
	}
}

func (st *parseState) currentVendorName() string {
	if len(st.vendorScope) == 0 {
		return ""
	}
	return st.vendorScope[len(st.vendorScope)-1]
}

func (st *parseState) parseVendor(file string, line int, fields []string) error {
	if len(fields) < 3 {
		return newParseError(file, line, ErrBadArguments, "VENDOR requires name and id")
	}
	id, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		return newParseError(file, line, ErrBadArguments, fmt.Sprintf("invalid vendor id %q: %v", fields[2], err))
	}

	v := &Vendor{Name: fields[1], ID: uint32(id)}
	v.TypeWidth, v.LengthWidth = defaultVendorFormat()

	for _, extra := range fields[3:] {
		if !strings.HasPrefix(extra, "format=") {
			continue
		}
		spec := strings.TrimPrefix(extra, "format=")
		parts := strings.Split(spec, ",")
		if len(parts) != 2 {
			return newParseError(file, line, ErrBadArguments, fmt.Sprintf("invalid VENDOR format %q, want t,l", spec))
		}
		tw, err := strconv.Atoi(parts[0])
		if err != nil {
			return newParseError(file, line, ErrBadArguments, fmt.Sprintf("invalid VENDOR type width %q", parts[0]))
		}
		lw, err := strconv.Atoi(parts[1])
		if err != nil {
			return newParseError(file, line, ErrBadArguments, fmt.Sprintf("invalid VENDOR length width %q", parts[1]))
		}
		v.TypeWidth, v.LengthWidth = tw, lw
	}

	if err := st.d.AddVendor(v); err != nil {
		return newParseError(file, line, ErrDuplicate, err.Error())
	}
	return nil
}

func (st *parseState) parseAttribute(file string, line int, fields []string) error {
	if len(fields) < 4 {
		return newParseError(file, line, ErrBadArguments, "ATTRIBUTE requires name, code, and type")
	}

	name := fields[1]
	codeSpec := fields[2]
	dataType := DataType(fields[3])

	if !knownType(dataType) {
		return newParseError(file, line, ErrUnknownType, fmt.Sprintf("unknown attribute type %q", dataType))
	}

	attr := &Attribute{Name: name, Type: dataType}

	if dot := strings.IndexByte(codeSpec, '.'); dot != -1 {
		parent, err := strconv.ParseUint(codeSpec[:dot], 10, 8)
		if err != nil {
			return newParseError(file, line, ErrBadArguments, fmt.Sprintf("invalid extended attribute parent code %q", codeSpec))
		}
		sub, err := strconv.ParseUint(codeSpec[dot+1:], 10, 8)
		if err != nil {
			return newParseError(file, line, ErrBadArguments, fmt.Sprintf("invalid extended attribute sub-type %q", codeSpec))
		}
		attr.Code = uint8(parent)
		attr.ExtendedType = uint8(sub)
		if attr.ExtendedType == 0 {
			return newParseError(file, line, ErrBadArguments, "extended attribute sub-type must be nonzero")
		}
	} else {
		code, err := strconv.ParseUint(codeSpec, 10, 8)
		if err != nil {
			return newParseError(file, line, ErrBadArguments, fmt.Sprintf("invalid attribute code %q", codeSpec))
		}
		attr.Code = uint8(code)
	}

	vendorName := st.currentVendorName()
	if vendorName != "" {
		v, _ := st.d.LookupVendorByName(vendorName)
		attr.Vendor = v.ID
	}

	for _, flag := range fields[4:] {
		for _, f := range strings.Split(flag, ",") {
			switch {
			case f == "has_tag":
				attr.HasTag = true
			case strings.HasPrefix(f, "encrypt="):
				n, err := strconv.Atoi(strings.TrimPrefix(f, "encrypt="))
				if err != nil {
					return newParseError(file, line, ErrBadArguments, fmt.Sprintf("invalid encrypt flag %q", f))
				}
				attr.Encrypt = Encryption(n)
			case f == "":
				// tolerate trailing commas
			default:
				return newParseError(file, line, ErrBadArguments, fmt.Sprintf("unknown ATTRIBUTE flag %q", f))
			}
		}
	}

	if err := st.d.addAttribute(vendorName, attr); err != nil {
		return newParseError(file, line, ErrDuplicate, err.Error())
	}
	return nil
}

func (st *parseState) parseValue(file string, line int, fields []string) error {
	if len(fields) != 4 {
		return newParseError(file, line, ErrBadArguments, "VALUE requires attribute-name, value-name, and integer")
	}
	n, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return newParseError(file, line, ErrBadArguments, fmt.Sprintf("invalid VALUE integer %q", fields[3]))
	}
	if err := st.d.AddValue(st.currentVendorName(), fields[1], fields[2], uint32(n)); err != nil {
		return newParseError(file, line, ErrBadArguments, err.Error())
	}
	return nil
}

func knownType(t DataType) bool {
	switch t {
	case TypeString, TypeText, TypeOctets, TypeInteger, TypeInteger64, TypeSigned,
		TypeDate, TypeIPAddr, TypeIPv6Addr, TypeIPv6Prefix, TypeIPv4Prefix,
		TypeIfID, TypeByte, TypeShort, TypeEther, TypeABinary, TypeTLV:
		return true
	default:
		return false
	}
}
