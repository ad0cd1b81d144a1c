package config

// Secret wraps a credential string so it can't leak through logging or
// accidental fmt of the config struct.
type Secret string

func (s *Secret) UnmarshalYAML(unmarshal func(any) error) error {
	var v string
	if err := unmarshal(&v); err != nil {
		return err
	}
	*s = Secret(v)
	return nil
}

// String redacts the value. Use Reveal to get the credential itself.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

func (s Secret) Reveal() string {
	return string(s)
}
