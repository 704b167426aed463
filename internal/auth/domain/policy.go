package domain

// AccessPolicy is declared next to each guarded route. An empty Roles list
// admits any authenticated principal.
type AccessPolicy struct {
	Roles       []Role
	MFARequired bool
}

// AnyRole admits every authenticated principal without step-up.
var AnyRole = AccessPolicy{}
