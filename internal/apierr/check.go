package apierr

// Check collects offending fields while validating a request.
//
//	var c apierr.Check
//	c.Require(req.Name != "", "name")
//	return c.Err("missing or invalid fields")
type Check struct {
	fields []string
}

// Require records field as offending unless ok.
func (c *Check) Require(ok bool, field string) {
	if !ok {
		c.fields = append(c.fields, field)
	}
}

// Err returns an InvalidInput error naming every offending field, or nil.
func (c *Check) Err(msg string) error {
	if len(c.fields) == 0 {
		return nil
	}
	return InvalidInput(msg, c.fields...)
}
