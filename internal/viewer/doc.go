// Package viewer serves the local item pages the renderer screenshots.
//
// /item/{id} renders an item tooltip from the stored raw payload inside a
// `.listing` element. The page depends only on the stored row, so repeated
// renders of the same item produce the same markup. /random, /latest/{n} and
// /items help browse the store by hand, /images/items/{id}.png serves rendered
// artifacts, and /api/status reports loop and store state as JSON.
package viewer
