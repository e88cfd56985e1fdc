package game

// Point values for a closed vote set. Integer points, no rounding.
const (
	PointsTruth = 1000 // picking the true prompt, and having yours picked
	PointsLie   = 500  // fooling a voter with your lie
)

// applyScores settles the vote set for the current generation. It runs
// exactly once per generation, at the VOTING -> SCORING transition.
//
// A correct accusation pays the voter and the true author PointsTruth each.
// A wrong accusation pays the lie's author PointsLie; the fooled voter gets
// nothing but their iVoteLies counter. Previous is snapshotted from Current
// right before every point mutation so the scoreboard can show deltas.
func applyScores(s *Snapshot) {
	cur, ok := s.CurrentGeneration()
	if !ok {
		return
	}
	for _, v := range s.Votes {
		if v.Accused == cur.Author {
			voter := s.Scores[v.Voter]
			voter.IVoteTruth++
			voter.Previous = voter.Current
			voter.Current += PointsTruth
			s.Scores[v.Voter] = voter

			author := s.Scores[cur.Author]
			author.MyTruthsVoted++
			author.Previous = author.Current
			author.Current += PointsTruth
			s.Scores[cur.Author] = author
		} else {
			voter := s.Scores[v.Voter]
			voter.IVoteLies++
			s.Scores[v.Voter] = voter

			liar := s.Scores[v.Accused]
			liar.MyLiesVoted++
			liar.Previous = liar.Current
			liar.Current += PointsLie
			s.Scores[v.Accused] = liar
		}
	}
}
