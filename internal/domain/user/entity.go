package user

// Ref identifies a chat participant. It is supplied by the host and never owned here.
type Ref struct {
	ID       string `json:"id" bson:"_id"`
	Name     string `json:"name,omitempty" bson:"name,omitempty"`
	Username string `json:"username,omitempty" bson:"username,omitempty"`
	Avatar   string `json:"avatar,omitempty" bson:"avatar,omitempty"`
}

// DocumentRef is a stored pointer to a sender document.
type DocumentRef struct {
	Collection string `json:"collection" bson:"collection"`
	ID         string `json:"id" bson:"id"`
}

// UsersCollection is the default collection sender references point into.
const UsersCollection = "users"

// RefTo builds a pointer to the user's document in the default collection.
func RefTo(id string) DocumentRef {
	return DocumentRef{Collection: UsersCollection, ID: id}
}

func (r DocumentRef) IsZero() bool {
	return r.ID == ""
}

func (r DocumentRef) String() string {
	return r.Collection + "/" + r.ID
}
