package dictionary

import "embed"

//go:embed dictdata
var defaultFS embed.FS

// Default returns a freshly parsed dictionary containing the core RFC
// 2865/2866/2869/3162/6929 attributes plus a small set of illustrative
// vendor dictionaries (Cisco, MikroTik, WISPr). Callers that need a
// site-specific vendor space start from Default() and ParseFile additional
// dictionaries into the same *Dictionary, the same way FreeRADIUS layers
// dictionary.local on top of its shipped dictionary.
func Default() (*Dictionary, error) {
	d := New()
	if err := d.ParseFS(defaultFS, "dictdata/dictionary"); err != nil {
		return nil, err
	}
	return d, nil
}
