package core

// Patch is a partial update of a post. The set of variants is closed: none of them can
// touch id, kind, parent, created_at or author.
type Patch interface {
	apply(p *Post)

	// counters returns the part of the patch that mirrors onto repost children.
	counters() (CounterPatch, bool)
}

// CounterPatch sets interactive counters and flags. Nil fields are left unchanged.
type CounterPatch struct {
	LikesCount     *int
	CommentsCount  *int
	RepostsCount   *int
	LikedByUser    *bool
	RepostedByUser *bool
}

func (c CounterPatch) apply(p *Post) {
	setIf(&p.LikesCount, c.LikesCount)
	setIf(&p.CommentsCount, c.CommentsCount)
	setIf(&p.RepostsCount, c.RepostsCount)
	setIf(&p.LikedByUser, c.LikedByUser)
	setIf(&p.RepostedByUser, c.RepostedByUser)
}

func (c CounterPatch) counters() (CounterPatch, bool) {
	return c, !c.Empty()
}

func (c CounterPatch) Empty() bool {
	return c.LikesCount == nil && c.CommentsCount == nil && c.RepostsCount == nil &&
		c.LikedByUser == nil && c.RepostedByUser == nil
}

// ContentPatch replaces the content payload. A nil Media leaves attachments unchanged.
type ContentPatch struct {
	Description *string
	Media       []Media
}

func (c ContentPatch) apply(p *Post) {
	setIf(&p.Description, c.Description)
	if c.Media != nil {
		p.Media = append([]Media{}, c.Media...)
	}
}

func (c ContentPatch) counters() (CounterPatch, bool) {
	return CounterPatch{}, false
}

// RelationshipPatch carries the viewer's own like/repost state.
type RelationshipPatch struct {
	LikedByUser    *bool
	RepostedByUser *bool
}

func (r RelationshipPatch) apply(p *Post) {
	setIf(&p.LikedByUser, r.LikedByUser)
	setIf(&p.RepostedByUser, r.RepostedByUser)
}

func (r RelationshipPatch) counters() (CounterPatch, bool) {
	c := CounterPatch{LikedByUser: r.LikedByUser, RepostedByUser: r.RepostedByUser}
	return c, !c.Empty()
}

// Apply returns a copy of p with the patches merged in order.
func (p Post) Apply(patches ...Patch) Post {
	for _, patch := range patches {
		if patch != nil {
			patch.apply(&p)
		}
	}
	return p
}

// MirrorCounters applies only the counter/flag part of the patches.
func (p Post) MirrorCounters(patches ...Patch) Post {
	for _, patch := range patches {
		if patch == nil {
			continue
		}
		if c, ok := patch.counters(); ok {
			c.apply(&p)
		}
	}
	return p
}

// SplitCounters separates the counter part of the patches from the rest.
func SplitCounters(patches ...Patch) (content []Patch, counters []Patch) {
	for _, patch := range patches {
		if patch == nil {
			continue
		}
		if c, ok := patch.counters(); ok {
			counters = append(counters, c)
			continue
		}
		content = append(content, patch)
	}
	return content, counters
}

// CountersPatch builds a patch that sets every counter to the given values.
func CountersPatch(c Counters) CounterPatch {
	return CounterPatch{
		LikesCount:     &c.LikesCount,
		CommentsCount:  &c.CommentsCount,
		RepostsCount:   &c.RepostsCount,
		LikedByUser:    &c.LikedByUser,
		RepostedByUser: &c.RepostedByUser,
	}
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
