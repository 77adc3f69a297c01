// Package descriptor provides the in-memory form of a statically compiled neural
// network descriptor for embedded targets.
//
// A descriptor is the data contract consumed by firmware inference engines:
//
//	Descriptor Structure:
//	  [number of layers, input layer included]
//	  [shape table: output height/width/depth per layer boundary]
//	  [layer table: type, activation, bias flag, weight/bias start offsets,
//	   pool (or kernel) size, strides, padding]
//	  [weights: all layers flattened into one float32 table]
//	  [biases: all layers flattened into one float32 table]
//
// The Model owns the two flattened tables (an arena) and hands out per-layer
// views that are sub-slices of it, so the contiguous layout of the generated
// firmware tables is preserved in memory.
//
// Two schema versions exist:
//   - SchemaBasic: dense-oriented table set (unitsInLayers, layerType, ...)
//   - SchemaExtended: adds spatial output dimensions and pooling parameters
//
// Example usage:
//
//	b := descriptor.NewBuilder(descriptor.Shape{Height: 4, Width: 1, Depth: 1})
//	b.Dense(3, descriptor.ActivationRelu, weights, bias)
//	b.Dense(2, descriptor.ActivationSoftmax, weights2, bias2)
//	model, err := b.Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for i := 0; i < model.NumLayers(); i++ {
//	    view := model.Layer(i)
//	    fmt.Println(view.Kind, len(view.Weights()))
//	}
//
// Models are immutable once built and may be read from many goroutines without
// synchronization.
package descriptor
