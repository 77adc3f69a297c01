// Package codegen renders validated descriptor models as native source code.
//
// Every target works from typed declarations (Decl) built out of the model's
// tables, so array lengths always agree with their values and float literals
// always round-trip. Built-in targets:
//
//   - gcc: nn_model.h with stdint.h types and the extended table set
//   - arduino: nn_model.h with Arduino types and the basic table set
//   - csharp: a static class with public readonly arrays
//   - json: the nnexport interchange document
//
// Example usage:
//
//	files, err := codegen.GCC{}.Emit(model, codegen.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	for _, f := range files {
//	    fmt.Println(f.Name, len(f.Data))
//	}
package codegen
