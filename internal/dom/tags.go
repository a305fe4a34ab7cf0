package dom

import (
	"golang.org/x/net/html/atom"
)

type atomSet map[atom.Atom]bool

func newAtomSet(atoms ...atom.Atom) atomSet {
	s := make(atomSet, len(atoms))
	for _, a := range atoms {
		s[a] = true
	}
	return s
}

// Elements that never have content or an end tag
var voidElements = newAtomSet(
	atom.Area, atom.Base, atom.Br, atom.Col, atom.Embed, atom.Hr, atom.Img,
	atom.Input, atom.Keygen, atom.Link, atom.Meta, atom.Param, atom.Source,
	atom.Track, atom.Wbr,
)

// Elements whose end tag may be omitted; they close implicitly when their
// parent closes or at end of input.
var optionalEndElements = newAtomSet(
	atom.Html, atom.Head, atom.Body, atom.P, atom.Li, atom.Dt, atom.Dd,
	atom.Option, atom.Optgroup, atom.Colgroup, atom.Caption, atom.Thead,
	atom.Tbody, atom.Tfoot, atom.Tr, atom.Td, atom.Th, atom.Rp, atom.Rt,
)

var pClosers = newAtomSet(
	atom.Address, atom.Article, atom.Aside, atom.Blockquote, atom.Details,
	atom.Div, atom.Dl, atom.Fieldset, atom.Figcaption, atom.Figure,
	atom.Footer, atom.Form, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5,
	atom.H6, atom.Header, atom.Hgroup, atom.Hr, atom.Main, atom.Menu,
	atom.Nav, atom.Ol, atom.P, atom.Pre, atom.Section, atom.Table, atom.Ul,
)

// openImpliesClose maps an open element to the incoming tags that close it
var openImpliesClose = map[atom.Atom]atomSet{
	atom.Li:       newAtomSet(atom.Li),
	atom.Dt:       newAtomSet(atom.Dt, atom.Dd),
	atom.Dd:       newAtomSet(atom.Dt, atom.Dd),
	atom.Option:   newAtomSet(atom.Option, atom.Optgroup),
	atom.Optgroup: newAtomSet(atom.Optgroup),
	atom.Rp:       newAtomSet(atom.Rp, atom.Rt),
	atom.Rt:       newAtomSet(atom.Rp, atom.Rt),
	atom.Thead:    newAtomSet(atom.Tbody, atom.Tfoot),
	atom.Tbody:    newAtomSet(atom.Tbody, atom.Tfoot),
	atom.Tr:       newAtomSet(atom.Tr),
	atom.Td:       newAtomSet(atom.Td, atom.Th, atom.Tr),
	atom.Th:       newAtomSet(atom.Td, atom.Th, atom.Tr),
	atom.Head:     newAtomSet(atom.Body),
	atom.P:        pClosers,
}

func lookup(tag string) atom.Atom {
	return atom.Lookup([]byte(tag))
}

// IsVoidElement reports whether tag never has an end tag
func IsVoidElement(tag string) bool {
	return voidElements[lookup(tag)]
}

func hasOptionalEnd(tag string) bool {
	return optionalEndElements[lookup(tag)]
}

// closedBy reports whether an open element named open is implicitly closed
// when an element named incoming starts
func closedBy(open, incoming string) bool {
	closers, ok := openImpliesClose[lookup(open)]
	return ok && closers[lookup(incoming)]
}
