// Package member holds the per-type member tables consumed by the
// dispatch adapter.
//
// A table is declared once per object type with a Builder:
//
//	var table = member.NewBuilder[*Calc]("Calc").
//		Property("Total", "Итог", (*Calc).total, nil).
//		Method("Add", "Сложить", 2, (*Calc).add).
//		MustBuild()
//
// Build validates names, access modes and arities and folds both names of
// every entry with Unicode case folding, so FindProperty and FindMethod
// match "add", "ADD" and "сложить" alike. The first matching entry in
// table order wins.
//
// Tables never change after Build and are shared by every instance of the
// type.
package member
