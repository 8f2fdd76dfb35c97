// Package category maps directory paths onto the category tree.
//
// Each directory segment of a workspace-relative path becomes a category
// under the previous one, starting from the configured root. Two ordered rule
// chains stored as application settings shape the result:
//
//	FullBuildCategoryNameParser<i>       regex with a (?P<CategoryName>...) group
//	FullBuildCategoryLabelNameParser<i>  regex whose groups become labels
//
// Rules are read from index 0 upward until the first missing index. A
// category created from a parsed name is announced as vfs.MsgNewCategory.
package category
