package witness

import (
	"github.com/colorfulnotion/zkwitness/trie"
	"github.com/colorfulnotion/zkwitness/types"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// accountUpdate mutates a copy of the account at some id. Returning nil
// removes the account from the tree.
type accountUpdate func(acc *trie.CircuitAccount, exists bool) *trie.CircuitAccount

func updateAccount(tree *trie.AccountTree, id types.AccountID, update accountUpdate) {
	acc, ok := tree.Get(id)
	if !ok {
		acc = trie.NewCircuitAccount()
	}
	next := update(acc, ok)
	if next == nil {
		tree.Remove(id)
		return
	}
	tree.Insert(id, next)
}

// applySingle applies an update that touches one account and builds its
// witness. Intermediate and after states coincide.
func applySingle(tree *trie.AccountTree, t types.OpType, id types.AccountID, token types.TokenID, args OperationArguments, pubdata []byte, update accountUpdate) *OpWitness {
	w := &OpWitness{
		TxType:     t,
		Args:       args,
		Before:     capturePair(tree, id, id, token),
		BeforeRoot: tree.RootHash(),
		Pubdata:    pubdata,
	}
	updateAccount(tree, id, update)
	w.After = capturePair(tree, id, id, token)
	w.Intermediate = w.After
	w.AfterRoot = tree.RootHash()
	w.IntermediateRoot = w.AfterRoot
	return w
}

// applyPair debits lhs and then credits rhs, capturing the state between
// the two updates.
func applyPair(tree *trie.AccountTree, t types.OpType, lhs, rhs types.AccountID, token types.TokenID, args OperationArguments, pubdata []byte, debit, credit accountUpdate) *OpWitness {
	w := &OpWitness{
		TxType:     t,
		Args:       args,
		Before:     capturePair(tree, lhs, rhs, token),
		BeforeRoot: tree.RootHash(),
		Pubdata:    pubdata,
	}
	updateAccount(tree, lhs, debit)
	w.Intermediate = capturePair(tree, lhs, rhs, token)
	w.IntermediateRoot = tree.RootHash()
	updateAccount(tree, rhs, credit)
	w.After = capturePair(tree, lhs, rhs, token)
	w.AfterRoot = tree.RootHash()
	return w
}

// debitArgs fills the balance check operands for a debit of amount+fee
// from the current balance.
func debitArgs(tree *trie.AccountTree, id types.AccountID, token types.TokenID, amount, fee fr.Element) OperationArguments {
	acc := tree.GetOrEmpty(id)
	var total fr.Element
	total.Add(&amount, &fee)
	return OperationArguments{
		Amount: amount,
		Fee:    fee,
		A:      acc.Balance(token),
		B:      total,
	}
}

func debit(token types.TokenID, amount, fee fr.Element) accountUpdate {
	return func(acc *trie.CircuitAccount, _ bool) *trie.CircuitAccount {
		var total fr.Element
		total.Add(&amount, &fee)
		acc.SubBalance(token, &total)
		acc.IncrementNonce()
		return acc
	}
}

func credit(token types.TokenID, amount fr.Element) accountUpdate {
	return func(acc *trie.CircuitAccount, _ bool) *trie.CircuitAccount {
		acc.AddBalance(token, &amount)
		return acc
	}
}
