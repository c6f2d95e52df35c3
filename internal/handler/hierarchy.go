package handler

import "github.com/medusa-ds9/medusad/internal/schema"

// HierarchyHandler is the built-in handler registered by
// Builder.WithHierarchyHandler. It walks the primary policy tree by the
// event's path attribute, resolving the subject's virtual space from the
// node it lands on.
func HierarchyHandler(ctx Context, args Args) Answer {
	tree, ok := ctx.TreeByName(args.Data.PrimaryTree)
	if !ok {
		// A missing primary tree is a configuration bug, not a runtime
		// condition a kernel peer can trigger; fail closed.
		return AnswerDeny
	}

	cinfo := args.Subject.ObjectCinfo()

	pathAttr := args.Data.Attribute
	var path string
	if pathAttr != "" {
		path, _ = args.EvType.Attrs().GetString(pathAttr)
	}

	var node = tree.Root()

	if cinfo == 0 {
		// Inherit the object's tree position when this event fires on
		// behalf of the object rather than an independent subject (e.g.
		// a process inheriting its parent's position), unless we're
		// already looking at the tree's root path.
		if args.Data.FromObject && args.Object != nil &&
			args.Subject.Header.ID == args.Object.Header.ID && path != "/" {
			cinfo = args.Object.ObjectCinfo()
		}

		if cinfo == 0 {
			node = tree.Root()
		} else if n, ok := ctx.NodeByCinfo(cinfo); ok {
			node = n
		} else {
			return AnswerDeny
		}

		_ = args.Subject.ClearObjectAct()
		_ = args.Subject.ClearSubjectAct()
	} else {
		n, ok := ctx.NodeByCinfo(cinfo)
		if !ok {
			return AnswerDeny
		}
		node = n
	}

	// Not at the root for the first time: descend exactly one level by
	// path. A miss means this path isn't covered by the tree.
	if cinfo != 0 {
		child := node.ChildByPath(path)
		if child == nil {
			return AnswerDeny
		}
		node = child
	}

	_ = args.Subject.SetVS(node.VS.MemberBytes())
	_ = args.Subject.SetVSRead(node.VS.ReadBytes())
	_ = args.Subject.SetVSWrite(node.VS.WriteBytes())
	_ = args.Subject.SetVSSee(node.VS.SeeBytes())

	if node.HasChildren() && args.EvType.Monitoring == schema.MonitoringObject {
		_ = args.Subject.AddObjectAct(int(args.EvType.MonitoringBit))
		_ = args.Subject.AddSubjectAct(int(args.EvType.MonitoringBit))
	}

	args.Subject.SetObjectCinfo(node.Cinfo)

	ctx.UpdateObjectNoWait(args.Subject)

	return AnswerOK
}
