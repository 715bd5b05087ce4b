// Per-type access model built from the AST.
//
// The walker records, for every struct type, which fields its methods
// read and write, whether the type carries a synchronization primitive,
// and every check-then-act site. Rules evaluate the finished models;
// the walk itself never judges.

package hazard

import (
	"go/ast"
	"go/token"
	"path/filepath"
	"sort"
)

// typeKey identifies a struct type within one scan. The directory
// disambiguates same-named packages.
type typeKey struct {
	dir  string
	pkg  string
	name string
}

// accessSite is one read or write of a field inside a method body.
type accessSite struct {
	method  string
	file    string
	line    int
	pos     token.Pos
	guarded bool // a lock was taken earlier in the method
}

// fieldInfo accumulates everything the rules need about one field.
type fieldInfo struct {
	name     string
	declared bool // seen in the struct declaration, not just accessed
	syncType bool // the field is itself a sync or atomic value
	writes   []accessSite
	reads    []accessSite
}

// writerCount returns how many distinct methods write the field.
func (f *fieldInfo) writerCount() int {
	seen := make(map[string]struct{}, len(f.writes))
	for _, w := range f.writes {
		seen[w.method] = struct{}{}
	}
	return len(seen)
}

// checkActSite is a conditional test of a field followed by a write to
// the same field inside the conditional body.
type checkActSite struct {
	field    string
	method   string
	file     string
	line     int  // line of the write
	lazyInit bool // the test compares the field against nil
	guarded  bool // a lock call precedes the write
}

// typeModel is the per-type view the rules evaluate.
type typeModel struct {
	key          typeKey
	file         string // type declaration, or first method when the declaration was not scanned
	line         int
	fields       map[string]*fieldInfo
	fieldOrder   []string
	declared     bool // the struct declaration itself was scanned
	hasSyncField bool
	locksCalled  bool
	checkActs    []checkActSite
}

func newTypeModel(key typeKey) *typeModel {
	return &typeModel{key: key, fields: make(map[string]*fieldInfo)}
}

// field returns the info for name, creating it on first touch.
// fieldOrder keeps declaration-then-touch order so rule output does
// not depend on map iteration.
func (m *typeModel) field(name string) *fieldInfo {
	f, ok := m.fields[name]
	if !ok {
		f = &fieldInfo{name: name}
		m.fields[name] = f
		m.fieldOrder = append(m.fieldOrder, name)
	}
	return f
}

// synchronizesAnything reports whether the type carries any sync
// primitive or any of its methods takes a lock.
func (m *typeModel) synchronizesAnything() bool {
	return m.hasSyncField || m.locksCalled
}

// collectModels folds one parsed file into the shared model map.
// Callers feed files in a fixed order; everything appended here keeps
// that order, which is what makes repeated scans identical.
func collectModels(fset *token.FileSet, file *ast.File, path string, models map[typeKey]*typeModel) {
	dir := filepath.Dir(path)
	pkg := file.Name.Name

	// Struct declarations first: field names and sync-typed fields.
	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, spec := range gd.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			st, ok := ts.Type.(*ast.StructType)
			if !ok {
				continue
			}
			key := typeKey{dir: dir, pkg: pkg, name: ts.Name.Name}
			m := models[key]
			if m == nil {
				m = newTypeModel(key)
				models[key] = m
			}
			pos := fset.Position(ts.Pos())
			m.file, m.line = pos.Filename, pos.Line
			m.declared = true
			for _, fld := range st.Fields.List {
				sync := isSyncExpr(fld.Type)
				if sync {
					m.hasSyncField = true
				}
				// Embedded fields (e.g. an embedded sync.Mutex) have
				// no names; their sync-ness still counts above.
				for _, name := range fld.Names {
					fi := m.field(name.Name)
					fi.declared = true
					fi.syncType = sync
				}
			}
		}
	}

	// Method bodies second.
	for _, decl := range file.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Recv == nil || fd.Body == nil {
			continue
		}
		recvType, recvName := receiverOf(fd)
		if recvType == "" || recvName == "" || recvName == "_" {
			continue
		}
		key := typeKey{dir: dir, pkg: pkg, name: recvType}
		m := models[key]
		if m == nil {
			m = newTypeModel(key)
			models[key] = m
			pos := fset.Position(fd.Pos())
			m.file, m.line = pos.Filename, pos.Line
		}
		w := &methodWalker{
			fset:   fset,
			model:  m,
			method: fd.Name.Name,
			recv:   recvName,
		}
		w.walkStmts(fd.Body.List)
		w.resolveSites()
	}
}

// receiverOf returns the receiver's type and variable names, peeling
// pointers and type parameters.
func receiverOf(fd *ast.FuncDecl) (typeName, varName string) {
	if len(fd.Recv.List) != 1 {
		return "", ""
	}
	field := fd.Recv.List[0]
	t := field.Type
	if star, ok := t.(*ast.StarExpr); ok {
		t = star.X
	}
	switch x := t.(type) {
	case *ast.IndexExpr:
		t = x.X
	case *ast.IndexListExpr:
		t = x.X
	}
	id, ok := t.(*ast.Ident)
	if !ok || len(field.Names) == 0 {
		return "", ""
	}
	return id.Name, field.Names[0].Name
}

// isSyncExpr reports whether a field type is itself a synchronization
// primitive: anything under sync or sync/atomic, by value or pointer,
// including generic forms like atomic.Pointer[T].
func isSyncExpr(expr ast.Expr) bool {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return isSyncExpr(t.X)
	case *ast.IndexExpr:
		return isSyncExpr(t.X)
	case *ast.SelectorExpr:
		id, ok := t.X.(*ast.Ident)
		return ok && (id.Name == "sync" || id.Name == "atomic")
	}
	return false
}

// isLockCall matches Lock, RLock, TryLock and Once.Do calls on any
// receiver chain. Without type information this is a name heuristic.
func isLockCall(call *ast.CallExpr) bool {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	switch sel.Sel.Name {
	case "Lock", "RLock", "TryLock", "TryRLock", "Do":
		return true
	}
	return false
}

func isUnlockCall(call *ast.CallExpr) bool {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	return sel.Sel.Name == "Unlock" || sel.Sel.Name == "RUnlock"
}

// methodWalker walks one method body in statement order. Statement
// order matters: a write is guarded only when a lock call already
// happened, so the walk cannot use plain ast.Inspect at the top level.
type methodWalker struct {
	fset   *token.FileSet
	model  *typeModel
	method string
	recv   string
	locked bool
	conds  []condRecord
}

// condRecord remembers one if-statement whose condition read receiver
// fields, until resolveSites matches it against writes in its body.
type condRecord struct {
	fields    map[string]bool
	nilFields map[string]bool
	bodyLo    token.Pos
	bodyHi    token.Pos
}

func (w *methodWalker) walkStmts(list []ast.Stmt) {
	for _, stmt := range list {
		w.walkStmt(stmt)
	}
}

func (w *methodWalker) walkStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.ExprStmt:
		w.walkExpr(s.X)
	case *ast.AssignStmt:
		for _, rhs := range s.Rhs {
			w.walkExpr(rhs)
		}
		if s.Tok == token.DEFINE {
			return
		}
		for _, lhs := range s.Lhs {
			w.recordWriteExpr(lhs)
			if s.Tok != token.ASSIGN {
				// Compound assignment reads the old value too.
				w.walkExpr(lhs)
			}
		}
	case *ast.IncDecStmt:
		w.walkExpr(s.X)
		w.recordWriteExpr(s.X)
	case *ast.IfStmt:
		w.walkIf(s)
	case *ast.BlockStmt:
		w.walkStmts(s.List)
	case *ast.ForStmt:
		if s.Init != nil {
			w.walkStmt(s.Init)
		}
		w.walkExpr(s.Cond)
		if s.Post != nil {
			w.walkStmt(s.Post)
		}
		w.walkStmts(s.Body.List)
	case *ast.RangeStmt:
		w.walkExpr(s.X)
		w.walkStmts(s.Body.List)
	case *ast.SwitchStmt:
		if s.Init != nil {
			w.walkStmt(s.Init)
		}
		w.walkExpr(s.Tag)
		for _, c := range s.Body.List {
			if cc, ok := c.(*ast.CaseClause); ok {
				for _, e := range cc.List {
					w.walkExpr(e)
				}
				w.walkStmts(cc.Body)
			}
		}
	case *ast.TypeSwitchStmt:
		if s.Init != nil {
			w.walkStmt(s.Init)
		}
		w.walkStmt(s.Assign)
		for _, c := range s.Body.List {
			if cc, ok := c.(*ast.CaseClause); ok {
				w.walkStmts(cc.Body)
			}
		}
	case *ast.SelectStmt:
		for _, c := range s.Body.List {
			if cc, ok := c.(*ast.CommClause); ok {
				if cc.Comm != nil {
					w.walkStmt(cc.Comm)
				}
				w.walkStmts(cc.Body)
			}
		}
	case *ast.ReturnStmt:
		for _, e := range s.Results {
			w.walkExpr(e)
		}
	case *ast.GoStmt:
		w.walkExpr(s.Call)
	case *ast.DeferStmt:
		// A deferred unlock runs at return, not here; it must not end
		// the guarded region early.
		if !isUnlockCall(s.Call) {
			w.walkExpr(s.Call)
		}
	case *ast.SendStmt:
		w.walkExpr(s.Chan)
		w.walkExpr(s.Value)
	case *ast.LabeledStmt:
		w.walkStmt(s.Stmt)
	case *ast.DeclStmt:
		gd, ok := s.Decl.(*ast.GenDecl)
		if !ok {
			return
		}
		for _, spec := range gd.Specs {
			if vs, ok := spec.(*ast.ValueSpec); ok {
				for _, v := range vs.Values {
					w.walkExpr(v)
				}
			}
		}
	}
}

// walkExpr records reads of receiver fields and reacts to lock calls
// and function literals found inside an expression.
func (w *methodWalker) walkExpr(expr ast.Expr) {
	if expr == nil {
		return
	}
	ast.Inspect(expr, func(n ast.Node) bool {
		switch e := n.(type) {
		case *ast.CallExpr:
			if isLockCall(e) {
				w.locked = true
				w.model.locksCalled = true
				return false
			}
			if isUnlockCall(e) {
				return false
			}
			// A call on the bare receiver is a method call, not a
			// field read; the arguments still count.
			if sel, ok := e.Fun.(*ast.SelectorExpr); ok {
				if id, ok := sel.X.(*ast.Ident); ok && id.Name == w.recv {
					for _, arg := range e.Args {
						w.walkExpr(arg)
					}
					return false
				}
			}
			return true
		case *ast.FuncLit:
			// Closures run with the method's guard state as a crude
			// approximation; a goroutine body usually locks for
			// itself anyway.
			w.walkStmts(e.Body.List)
			return false
		case *ast.SelectorExpr:
			if name, ok := w.recvField(e); ok {
				w.recordRead(name, e.Pos())
			}
			return false
		}
		return true
	})
}

// recvField resolves a selector chain rooted at the receiver to its
// first field hop: s.buf.len yields "buf".
func (w *methodWalker) recvField(sel *ast.SelectorExpr) (string, bool) {
	switch x := sel.X.(type) {
	case *ast.Ident:
		if x.Name == w.recv {
			return sel.Sel.Name, true
		}
	case *ast.SelectorExpr:
		return w.recvField(x)
	}
	return "", false
}

// recordWriteExpr peels an assignment target down to a receiver field
// and records the write. Index expressions count as writes to the
// indexed field.
func (w *methodWalker) recordWriteExpr(lhs ast.Expr) {
	target := lhs
	for {
		switch t := target.(type) {
		case *ast.ParenExpr:
			target = t.X
			continue
		case *ast.StarExpr:
			target = t.X
			continue
		case *ast.IndexExpr:
			w.walkExpr(t.Index)
			target = t.X
			continue
		}
		break
	}
	sel, ok := target.(*ast.SelectorExpr)
	if !ok {
		return
	}
	if name, ok := w.recvField(sel); ok {
		w.recordWrite(name, sel.Pos())
	}
}

func (w *methodWalker) recordWrite(field string, pos token.Pos) {
	p := w.fset.Position(pos)
	fi := w.model.field(field)
	fi.writes = append(fi.writes, accessSite{
		method:  w.method,
		file:    p.Filename,
		line:    p.Line,
		pos:     pos,
		guarded: w.locked,
	})
}

func (w *methodWalker) recordRead(field string, pos token.Pos) {
	p := w.fset.Position(pos)
	fi := w.model.field(field)
	fi.reads = append(fi.reads, accessSite{
		method:  w.method,
		file:    p.Filename,
		line:    p.Line,
		pos:     pos,
		guarded: w.locked,
	})
}

func (w *methodWalker) walkIf(s *ast.IfStmt) {
	if s.Init != nil {
		w.walkStmt(s.Init)
	}
	cond := w.condInfo(s.Cond)
	w.walkExpr(s.Cond)
	if len(cond.fields) > 0 {
		cond.bodyLo, cond.bodyHi = s.Body.Pos(), s.Body.End()
		w.conds = append(w.conds, cond)
	}
	w.walkStmts(s.Body.List)
	if s.Else != nil {
		w.walkStmt(s.Else)
	}
}

// condInfo collects the receiver fields an if-condition reads, and
// which of them are nil comparisons. Method calls in the condition are
// opaque: whatever they read is their business.
func (w *methodWalker) condInfo(cond ast.Expr) condRecord {
	rec := condRecord{
		fields:    make(map[string]bool),
		nilFields: make(map[string]bool),
	}
	ast.Inspect(cond, func(n ast.Node) bool {
		switch e := n.(type) {
		case *ast.BinaryExpr:
			if e.Op == token.EQL || e.Op == token.NEQ {
				if name, ok := w.nilComparedField(e); ok {
					rec.fields[name] = true
					rec.nilFields[name] = true
					return false
				}
			}
		case *ast.SelectorExpr:
			if name, ok := w.recvField(e); ok {
				rec.fields[name] = true
			}
			return false
		case *ast.CallExpr:
			return false
		}
		return true
	})
	return rec
}

func (w *methodWalker) nilComparedField(e *ast.BinaryExpr) (string, bool) {
	isNil := func(x ast.Expr) bool {
		id, ok := x.(*ast.Ident)
		return ok && id.Name == "nil"
	}
	if sel, ok := e.X.(*ast.SelectorExpr); ok && isNil(e.Y) {
		return w.recvField(sel)
	}
	if sel, ok := e.Y.(*ast.SelectorExpr); ok && isNil(e.X) {
		return w.recvField(sel)
	}
	return "", false
}

// resolveSites matches each remembered condition against the writes
// that landed inside its body. One site per condition and field; the
// first write wins.
func (w *methodWalker) resolveSites() {
	for _, c := range w.conds {
		names := make([]string, 0, len(c.fields))
		for name := range c.fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fi := w.model.fields[name]
			if fi == nil {
				continue
			}
			for _, wr := range fi.writes {
				if wr.method != w.method || wr.pos < c.bodyLo || wr.pos > c.bodyHi {
					continue
				}
				w.model.checkActs = append(w.model.checkActs, checkActSite{
					field:    name,
					method:   w.method,
					file:     wr.file,
					line:     wr.line,
					lazyInit: c.nilFields[name],
					guarded:  wr.guarded,
				})
				break
			}
		}
	}
}
