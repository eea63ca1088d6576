/*Package markduplicates marks or removes duplicate reads from a
  coordinate- or query-name-sorted stream of SAM/BAM alignment records.

  This package is meant to replicate the behavior of Picard
  MarkDuplicates, built around a fixed-memory, three-pass,
  external-merge-sort pipeline instead of an in-memory read-ends map.

  Duplicate Marking Concepts:

  At the conceptual level, this tool considers two reads A and B as
  duplicates (isDuplicate(A, B)) if their:
    1) reference
    2) unclipped 5' position
    3) read direction (orientation)
    4) library
  are ALL identical.

  Two pairs P1 and P2 are considered duplicates of each other if
  isDuplicate(P1.leftRead, P2.leftRead) and isDuplicate(P1.rightRead,
  P2.rightRead). Left vs. right is determined by the unclipped 5'
  position of each read in the pair.

  Mapped pairs vs. mate-unmapped reads: a mapped pair can be a
  duplicate of another mapped pair, but a mapped pair P1 may NOT be a
  duplicate of a mate-unmapped read's pair P2, because P2's unmapped
  mate has no alignment position. The mapped read of such a pair can
  still be a duplicate of one read of a mapped pair; when both a pair
  and a mate-unmapped read collide at the same position, the pair
  always wins and the mate-unmapped read is always the duplicate.

  After identifying the duplicates, this tool selects a primary pair
  or read for each duplicate set: the highest-scoring member (sum of
  base qualities, or total mapped reference length, depending on
  DUPLICATE_SCORING_STRATEGY), ties broken by the earliest position in
  the input.

  Within a duplicate set, members whose flowcell coordinates (parsed
  from the read name) fall within OPTICAL_DUPLICATE_PIXEL_DISTANCE of
  the primary's tile neighborhood are further classified as optical
  duplicates rather than library duplicates.

  Tagging:

  When TAGGING_POLICY requests it, the engine attaches a DT tag to
  every duplicate record: "SQ" for an optical duplicate, "LB" for an
  ordinary one. When TAG_REPRESENTATIVE_READ is set, every member of a
  duplicate set (including its representative) additionally carries RR
  (the representative's first-encountered read name) and DS (the
  set's cardinality).

  Implementation — three passes over the input:

  Pass 1 (build) streams the input once, in its declared sort order.
  For every primary, mapped record it constructs a fixed-width
  Signature (library, unclipped 5' position, orientation, score,
  optical location, file index) and appends it to one of two
  external-merge-sort collections: the fragment sorter (one entry per
  primary record) and the pair sorter (one entry per completed mate
  pair). Mate pairing is resolved with an unmatched-mate map: the
  first-seen mate's signature is held there, keyed by read name and
  partitioned by the mate's own reference index, until its partner
  arrives; the map spills partitions to disk under a bounded open-file
  budget so memory stays flat regardless of how many reads are
  in-flight at once. A trailing unmapped block ends Pass 1 for a
  coordinate-sorted stream, since everything after that point in such
  a stream has no alignment position.

  Pass 2 (detect) drains the two sorters — each already in the total
  order needed to group duplicates adjacently — and chunks consecutive
  comparable signatures. Each chunk produces a duplicate-set decision:
  which member is the representative, which members are optical
  duplicates, and which are ordinary duplicates. Decisions are written
  as two more external-merge-sort collections, keyed by file index:
  one listing every duplicate record's index, one listing every
  optical-duplicate record's index (and, when requested, a third
  listing representative-read metadata per record).

  Pass 3 (apply) replays the input a second time, in original file
  order, merging it against the two (or three) sorted index streams
  with a single forward cursor each — no seeking, no buffering beyond
  one record of lookahead. Each record either matches the next pending
  index (and is tagged or dropped accordingly) or does not (and passes
  through unchanged); per-library metrics accumulate in the same pass.

  Because every intermediate collection is produced once in sorted
  order and consumed once in the same order, the only unbounded
  resource is disk, not memory: Pass 1's sorters and mate map spill
  once input exceeds the configured heap budget, and Pass 3's merge
  never holds more than a handful of pending decisions in RAM at a
  time.
*/
package markduplicates
