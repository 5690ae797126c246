// Package bagit creates and validates BagIt bags (IETF RFC 8493, versions
// 0.93 through 1.0): a directory-layout convention for packaging an
// arbitrary file tree together with fixity manifests and metadata tag
// files.
//
// A Bag is built in place over an existing directory with MakeBag, which
// moves the directory's contents under data/, writes manifests and tag
// files alongside it, and returns a Bag describing the result. An
// existing bag directory is loaded with Open, and checked for corruption
// or tampering with Validate.
//
// Unlike bag formats that serialize to a single archive file, a Bag here
// is always a plain directory: there is no zip or tar step, since the
// RFC describes a directory layout, not a container format.
package bagit

// SupportedAlgorithms are the digest algorithms MakeBag uses, in this
// order, when none are given. md5 and sha1 can also be computed and
// verified when asked for explicitly.
var SupportedAlgorithms = []string{"sha256", "sha512"}

// StandardBagInfoHeaders are the Bag-Info headers named by the BagIt
// specification as having agreed meanings. The CLI exposes one flag per
// header in this list.
var StandardBagInfoHeaders = []string{
	"Source-Organization",
	"Organization-Address",
	"Contact-Name",
	"Contact-Phone",
	"Contact-Email",
	"External-Description",
	"External-Identifier",
	"Bag-Size",
	"Bag-Group-Identifier",
	"Bag-Count",
	"Internal-Sender-Identifier",
	"Internal-Sender-Description",
	"BagIt-Profile-Identifier",
}
