package ir

import "fmt"

// Class is a class or interface type of a Table.
type Class struct {
	Name       string
	Super      *Class
	Interfaces []*Class
	IsIface    bool
	// Category is inherited by subclasses unless they set their own.
	Category Category

	methods map[string]*MethodDecl
}

func (c *Class) String() string { return c.Name }

// Declared returns the method with the given name declared directly in c.
func (c *Class) Declared(name string) *MethodDecl { return c.methods[name] }

// MethodDecl is a method of a Table.
type MethodDecl struct {
	Class    *Class
	Name     string
	Static   bool
	Abstract bool

	body *Body
}

func (m *MethodDecl) String() string { return m.Class.Name + "." + m.Name }

// Table is an in-memory program: a class hierarchy with method bodies. It
// implements Program and is mostly useful for tests and small hand-written
// models.
type Table struct {
	classes map[string]*Class
	fields  map[string]*Field
}

var _ Program = (*Table)(nil)

func NewTable() *Table {
	return &Table{
		classes: make(map[string]*Class),
		fields:  make(map[string]*Field),
	}
}

// Class declares a class. Declaring the same name twice is a programming
// error.
func (t *Table) Class(name string, super *Class, ifaces ...*Class) *Class {
	if _, found := t.classes[name]; found {
		panic(fmt.Errorf("class %s declared twice", name))
	}
	c := &Class{
		Name:       name,
		Super:      super,
		Interfaces: ifaces,
		methods:    make(map[string]*MethodDecl),
	}
	t.classes[name] = c
	return c
}

// Interface declares an interface type.
func (t *Table) Interface(name string, supers ...*Class) *Class {
	c := t.Class(name, nil, supers...)
	c.IsIface = true
	return c
}

// Lookup returns the class with the given name or nil.
func (t *Table) Lookup(name string) *Class { return t.classes[name] }

// Field returns the instance field with the given qualified name.
func (t *Table) Field(name string) *Field { return t.field(name, false) }

// StaticField returns the static field with the given qualified name.
func (t *Table) StaticField(name string) *Field { return t.field(name, true) }

func (t *Table) field(name string, static bool) *Field {
	key := name
	if static {
		key = "static " + name
	}
	f, found := t.fields[key]
	if !found {
		f = &Field{Name: name, Static: static}
		t.fields[key] = f
	}
	return f
}

// Abstract declares a method without a body.
func (t *Table) Abstract(c *Class, name string) *MethodDecl {
	m := &MethodDecl{Class: c, Name: name, Abstract: true}
	c.methods[name] = m
	return m
}

// Define declares a method with nparams parameters (not counting the
// receiver) and returns a builder for its body.
func (t *Table) Define(c *Class, name string, static bool, nparams int) *BodyBuilder {
	m := &MethodDecl{Class: c, Name: name, Static: static}
	c.methods[name] = m

	b := &BodyBuilder{method: m, body: &Body{This: NoVar}}
	if !static {
		b.body.This = b.Fresh()
	}
	for i := 0; i < nparams; i++ {
		b.body.Params = append(b.body.Params, b.Fresh())
	}
	m.body = b.body
	return b
}

func (t *Table) Body(m Method) *Body {
	if md, ok := m.(*MethodDecl); ok && !md.Abstract {
		return md.body
	}
	return nil
}

func (t *Table) Resolve(recv Type, declared Method) (Method, bool) {
	c, ok := recv.(*Class)
	if !ok || c.IsIface {
		return nil, false
	}
	md, ok := declared.(*MethodDecl)
	if !ok || !c.subtypeOf(md.Class, make(map[*Class]bool)) {
		return nil, false
	}

	for ; c != nil; c = c.Super {
		if m := c.methods[md.Name]; m != nil && !m.Static && !m.Abstract {
			return m, true
		}
	}
	return nil, false
}

func (t *Table) Assignable(from, to Type) bool {
	if to == nil || from == to {
		return true
	}
	c, ok := from.(*Class)
	if !ok {
		return false
	}
	target, ok := to.(*Class)
	if !ok {
		return false
	}
	return c.subtypeOf(target, make(map[*Class]bool))
}

func (c *Class) subtypeOf(target *Class, seen map[*Class]bool) bool {
	if c == target {
		return true
	}
	if seen[c] {
		return false
	}
	seen[c] = true

	if c.Super != nil && c.Super.subtypeOf(target, seen) {
		return true
	}
	for _, i := range c.Interfaces {
		if i.subtypeOf(target, seen) {
			return true
		}
	}
	return false
}

func (t *Table) Category(typ Type) Category {
	c, _ := typ.(*Class)
	for ; c != nil; c = c.Super {
		if c.Category != Ordinary {
			return c.Category
		}
	}
	return Ordinary
}

// BodyBuilder appends instructions to a method body.
type BodyBuilder struct {
	method *MethodDecl
	body   *Body
	next   Var
}

// Method returns the method under construction.
func (b *BodyBuilder) Method() *MethodDecl { return b.method }

func (b *BodyBuilder) This() Var       { return b.body.This }
func (b *BodyBuilder) Param(i int) Var { return b.body.Params[i] }
func (b *BodyBuilder) Body() *Body     { return b.body }

func (b *BodyBuilder) emit(i Instruction) { b.body.Instrs = append(b.body.Instrs, i) }

// Fresh allocates an unused local.
func (b *BodyBuilder) Fresh() Var {
	v := b.next
	b.next++
	return v
}

func (b *BodyBuilder) New(typ Type, label string) Var {
	dst := b.Fresh()
	b.emit(&New{Dst: dst, Type: typ, Label: label})
	return dst
}

// NewMany allocates at a site that is expected to produce many objects.
func (b *BodyBuilder) NewMany(typ Type, label string) Var {
	dst := b.Fresh()
	b.emit(&New{Dst: dst, Type: typ, Label: label, Many: true})
	return dst
}

func (b *BodyBuilder) Copy(dst, src Var) { b.emit(&Copy{Dst: dst, Src: src}) }

func (b *BodyBuilder) Cast(src Var, typ Type) Var {
	dst := b.Fresh()
	b.emit(&Cast{Dst: dst, Src: src, Type: typ})
	return dst
}

func (b *BodyBuilder) Load(base Var, f *Field) Var {
	dst := b.Fresh()
	b.emit(&Load{Dst: dst, Base: base, Field: f})
	return dst
}

func (b *BodyBuilder) Store(base Var, f *Field, src Var) {
	b.emit(&Store{Base: base, Field: f, Src: src})
}

func (b *BodyBuilder) ArrayLoad(arr Var) Var {
	dst := b.Fresh()
	b.emit(&ArrayLoad{Dst: dst, Array: arr})
	return dst
}

func (b *BodyBuilder) ArrayStore(arr, src Var) { b.emit(&ArrayStore{Array: arr, Src: src}) }

func (b *BodyBuilder) StaticLoad(f *Field) Var {
	dst := b.Fresh()
	b.emit(&StaticLoad{Dst: dst, Field: f})
	return dst
}

func (b *BodyBuilder) StaticStore(f *Field, src Var) { b.emit(&StaticStore{Field: f, Src: src}) }

// Call emits a call whose result is stored in a fresh local. Static calls
// ignore recv.
func (b *BodyBuilder) Call(kind CallKind, m Method, recv Var, args ...Var) *Call {
	if kind == Static {
		recv = NoVar
	}
	c := &Call{
		Kind:      kind,
		Method:    m,
		Receiver:  recv,
		Args:      args,
		Result:    b.Fresh(),
		Exception: NoVar,
	}
	b.emit(c)
	return c
}

func (b *BodyBuilder) Return(v Var) { b.emit(&Return{Value: v}) }
func (b *BodyBuilder) Throw(v Var)  { b.emit(&Throw{Value: v}) }

func (b *BodyBuilder) Catch(typ Type) Var {
	dst := b.Fresh()
	b.emit(&Catch{Dst: dst, Type: typ})
	return dst
}
