package scene

// FocusKind tags the variant held by a FocusObject.
type FocusKind int

const (
	FocusNone FocusKind = iota
	FocusReal
	FocusPlaceholder
)

func (k FocusKind) String() string {
	switch k {
	case FocusReal:
		return "real"
	case FocusPlaceholder:
		return "placeholder"
	default:
		return "none"
	}
}

// FocusObject is the single interactive entity: either a loaded model with its
// clips, or a stand-in shape shown after a failed load. The zero value is "none".
type FocusObject struct {
	kind  FocusKind
	node  *Node
	anims *AnimationSet
}

// RealFocus wraps a loaded model. anims may be nil.
func RealFocus(root *Node, anims *AnimationSet) FocusObject {
	if anims == nil {
		anims = &AnimationSet{}
	}
	return FocusObject{kind: FocusReal, node: root, anims: anims}
}

func PlaceholderFocus(node *Node) FocusObject {
	return FocusObject{kind: FocusPlaceholder, node: node}
}

func (f FocusObject) Kind() FocusKind { return f.kind }

func (f FocusObject) Node() *Node { return f.node }

// Animations is nil unless Kind is FocusReal.
func (f FocusObject) Animations() *AnimationSet { return f.anims }
