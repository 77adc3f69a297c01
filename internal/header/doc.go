// Package header reads generated C headers back into descriptor tables.
//
// The parser understands the subset of C the code generators emit: scalar and
// array constant declarations with integer, boolean and float literals. It is
// used to check round trips and to re-target an existing header, e.g. reading
// an Arduino header and emitting it for GCC.
//
// Example usage:
//
//	model, err := header.ParseModel(data)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(model.NumberOfLayers())
package header
