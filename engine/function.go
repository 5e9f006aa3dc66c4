package engine

import (
	"runtime"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/thiremani/lattice/compiler"
	"github.com/thiremani/lattice/ir"
	"tinygo.org/x/go-llvm"
)

// Set is the host side of a set aggregate. Edge sets carry their endpoint
// and adjacency arrays; Fields holds one slice per declared field, in
// declaration order.
type Set struct {
	Size          int32
	Endpoints     []int32
	NeighborStart []int32
	Neighbors     []int32
	Fields        []any
}

// Function is a JIT-compiled artifact. Arguments and results are bound by
// address before Init and Run, and the memory behind them is pinned until
// Close.
//
// A Function must not be used from more than one goroutine at a time.
type Function struct {
	art    *compiler.Artifact
	ee     llvm.ExecutionEngine
	pinner runtime.Pinner

	params  map[string]compiler.Param
	bound   map[string]bool
	globals map[string]ir.Var
	buffers map[string]compiler.Buffer

	initialized bool
}

// Load hands the module of art to MCJIT. The module is owned by the
// returned Function from then on.
func Load(art *compiler.Artifact, opts Options) (*Function, error) {
	tm, err := hostMachine(opts)
	if err != nil {
		return nil, err
	}
	configureModule(art.Module, tm)
	tm.Dispose()

	options := llvm.NewMCJITCompilerOptions()
	options.SetMCJITOptimizationLevel(uint(max(opts.OptLevel, 0)))
	options.SetMCJITCodeModel(llvm.CodeModelJITDefault)
	ee, err := llvm.NewMCJITCompiler(art.Module, options)
	if err != nil {
		return nil, errors.Wrapf(err, "jit %s", art.Name)
	}

	f := &Function{
		art:     art,
		ee:      ee,
		params:  make(map[string]compiler.Param, len(art.Params)),
		bound:   make(map[string]bool, len(art.Params)),
		globals: make(map[string]ir.Var, len(art.Globals)),
		buffers: make(map[string]compiler.Buffer, len(art.Buffers)),
	}
	for _, p := range art.Params {
		f.params[p.Var.Name] = p
	}
	for _, g := range art.Globals {
		f.globals[g.Name] = g
	}
	for _, b := range art.Buffers {
		f.buffers[b.Var.Name] = b
	}
	return f, nil
}

// globalAddr returns the host address of a module global.
func (f *Function) globalAddr(name string) (unsafe.Pointer, error) {
	g := f.art.Module.NamedGlobal(name)
	if g.IsNil() {
		return nil, errors.Errorf("global %s not found in %s", name, f.art.Name)
	}
	return f.ee.PointerToGlobal(g), nil
}

func (f *Function) param(name string) (compiler.Param, error) {
	p, ok := f.params[name]
	if !ok {
		return compiler.Param{}, errors.Errorf("%s has no argument or result %s", f.art.Name, name)
	}
	return p, nil
}

// setSlot stores ptr in the slot of the argument or result called name.
func (f *Function) setSlot(name string, ptr unsafe.Pointer) error {
	p, err := f.param(name)
	if err != nil {
		return err
	}
	slot, err := f.globalAddr(p.Slot)
	if err != nil {
		return err
	}
	*(*unsafe.Pointer)(slot) = ptr
	f.bound[name] = true
	return nil
}

// slicePtr pins the backing array of a []float64, []float32 or []int32
// and returns its address.
func (f *Function) slicePtr(data any) (unsafe.Pointer, error) {
	var ptr unsafe.Pointer
	switch d := data.(type) {
	case []float64:
		if len(d) > 0 {
			ptr = unsafe.Pointer(&d[0])
		}
	case []float32:
		if len(d) > 0 {
			ptr = unsafe.Pointer(&d[0])
		}
	case []int32:
		if len(d) > 0 {
			ptr = unsafe.Pointer(&d[0])
		}
	default:
		return nil, errors.Errorf("unsupported tensor data %T", data)
	}
	if ptr != nil {
		f.pinner.Pin(ptr)
	}
	return ptr, nil
}

// scalarPtr pins a *float64, *float32, *int32 or *bool.
func (f *Function) scalarPtr(ptr any) (unsafe.Pointer, error) {
	var p unsafe.Pointer
	switch v := ptr.(type) {
	case *float64:
		p = unsafe.Pointer(v)
	case *float32:
		p = unsafe.Pointer(v)
	case *int32:
		p = unsafe.Pointer(v)
	case *bool:
		p = unsafe.Pointer(v)
	default:
		return nil, errors.Errorf("unsupported scalar pointer %T", ptr)
	}
	if p == nil {
		return nil, errors.New("nil scalar pointer")
	}
	f.pinner.Pin(p)
	return p, nil
}

// BindTensor binds a tensor argument or result to data.
func (f *Function) BindTensor(name string, data any) error {
	ptr, err := f.slicePtr(data)
	if err != nil {
		return errors.Wrapf(err, "bind %s", name)
	}
	return f.setSlot(name, ptr)
}

// BindScalar binds a scalar argument or result to the value ptr points to.
func (f *Function) BindScalar(name string, ptr any) error {
	p, err := f.scalarPtr(ptr)
	if err != nil {
		return errors.Wrapf(err, "bind %s", name)
	}
	return f.setSlot(name, p)
}

// BindSet binds a set argument to s.
func (f *Function) BindSet(name string, s *Set) error {
	p, err := f.param(name)
	if err != nil {
		return err
	}
	words, err := f.setWords(p.Var, s)
	if err != nil {
		return errors.Wrapf(err, "bind %s", name)
	}
	f.pinner.Pin(&words[0])
	return f.setSlot(name, unsafe.Pointer(&words[0]))
}

// setWords lays out s the way the module sees a set aggregate: the i32
// size in the first 8-byte word followed by one pointer per word.
func (f *Function) setWords(v ir.Var, s *Set) ([]uint64, error) {
	st, ok := v.Type.(*ir.SetType)
	if !ok {
		return nil, errors.Errorf("%s is not a set", v.Name)
	}
	if len(s.Fields) != len(st.Element.Fields) {
		return nil, errors.Errorf("set %s has %d fields, got %d", v.Name, len(st.Element.Fields), len(s.Fields))
	}

	words := []uint64{uint64(uint32(s.Size))}
	if st.IsEdgeSet() {
		for _, idx := range [][]int32{s.Endpoints, s.NeighborStart, s.Neighbors} {
			ptr, err := f.slicePtr(idx)
			if err != nil {
				return nil, err
			}
			words = append(words, uint64(uintptr(ptr)))
		}
	}
	for i, data := range s.Fields {
		ptr, err := f.slicePtr(data)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", st.Element.Fields[i].Name)
		}
		words = append(words, uint64(uintptr(ptr)))
	}
	return words, nil
}

// BindGlobal sets a module-scope variable. Tensors take a slice, scalars a
// value, and sets a *Set.
func (f *Function) BindGlobal(name string, value any) error {
	v, ok := f.globals[name]
	if !ok {
		return errors.Errorf("%s has no global %s", f.art.Name, name)
	}
	addr, err := f.globalAddr(v.Name)
	if err != nil {
		return err
	}

	switch val := value.(type) {
	case *Set:
		words, err := f.setWords(v, val)
		if err != nil {
			return errors.Wrapf(err, "bind global %s", name)
		}
		copy(unsafe.Slice((*uint64)(addr), len(words)), words)
	case float64:
		*(*float64)(addr) = val
	case float32:
		*(*float32)(addr) = val
	case int32:
		*(*int32)(addr) = val
	case bool:
		*(*bool)(addr) = val
	default:
		ptr, err := f.slicePtr(value)
		if err != nil {
			return errors.Wrapf(err, "bind global %s", name)
		}
		*(*unsafe.Pointer)(addr) = ptr
	}
	return nil
}

func (f *Function) call(name string) error {
	for n := range f.params {
		if !f.bound[n] {
			return errors.Errorf("%s: %s is not bound", f.art.Name, n)
		}
	}
	fn := f.ee.FindFunction(name)
	if fn.IsNil() {
		return errors.Errorf("function %s not found", name)
	}
	f.ee.RunFunction(fn, nil).Dispose()
	return nil
}

// Init allocates the module buffers.
func (f *Function) Init() error {
	if f.initialized {
		return errors.Errorf("%s is already initialized", f.art.Name)
	}
	if err := f.call(f.art.InitCall); err != nil {
		return err
	}
	f.initialized = true
	return nil
}

// Run calls the entry function.
func (f *Function) Run() error {
	if !f.initialized {
		return errors.Errorf("%s is not initialized", f.art.Name)
	}
	return f.call(f.art.EntryCall)
}

// Deinit frees the module buffers.
func (f *Function) Deinit() error {
	if !f.initialized {
		return errors.Errorf("%s is not initialized", f.art.Name)
	}
	if err := f.call(f.art.DeinitCall); err != nil {
		return err
	}
	f.initialized = false
	return nil
}

// Buffer copies the first n components of a float64 module buffer.
func (f *Function) Buffer(name string, n int) ([]float64, error) {
	b, ok := f.buffers[name]
	if !ok {
		return nil, errors.Errorf("%s has no buffer %s", f.art.Name, name)
	}
	if !f.initialized {
		return nil, errors.Errorf("buffer %s read before init", name)
	}
	if t := b.Var.Tensor(); t == nil || t.Component != ir.Float {
		return nil, errors.Errorf("buffer %s is not a float64 tensor", name)
	}
	addr, err := f.globalAddr(b.Global)
	if err != nil {
		return nil, err
	}
	data := *(*unsafe.Pointer)(addr)
	out := make([]float64, n)
	copy(out, unsafe.Slice((*float64)(data), n))
	return out, nil
}

// Close releases the JIT and the module and unpins all bound memory. It
// does not free buffers; call Deinit first.
func (f *Function) Close() {
	f.ee.Dispose()
	f.pinner.Unpin()
}
