package domain

// EntityType names the stored entity kinds, used for cascade ordering and
// export file naming.
type EntityType string

// Entity types.
const (
	EntityReadingProgress EntityType = "reading_progress"
	EntityHighlight       EntityType = "highlights"
	EntityAnnotation      EntityType = "annotations"
	EntityLibraryItem     EntityType = "library_items"
	EntityChapter         EntityType = "chapters"
	EntityBook            EntityType = "books"
)

// DeleteOrder lists entity types leaf-first. Cascading deletes walk this
// order so no dangling reference survives a partial failure midway: by the
// time a parent is removed, everything that pointed at it is already gone.
var DeleteOrder = []EntityType{
	EntityReadingProgress,
	EntityHighlight,
	EntityAnnotation,
	EntityLibraryItem,
	EntityChapter,
	EntityBook,
}
