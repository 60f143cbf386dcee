// Package memory turns a method's memory plan into concrete buffers.
//
// A compiled method declares how many memory-planned buffers it needs and how large each
// is. Plan carves one buffer per declared id out of the method arena, in id order, and
// returns them as a HierarchicalAllocator. Tensors then resolve their storage with
// OffsetFromID. A Manager bundles the method arena, the planned buffers and the temporary
// arena into the execution context a loaded method runs against.
//
// Planning happens once per load. Nothing here allocates during inference.
package memory
